package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/characters"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Characters(db dbx.DBTX) characters.Repository
}
