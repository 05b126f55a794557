// Command seed creates a user account and its characters in the database
// configured for the server, so a fresh install can be logged into.
//
//	seed -email steve@example.com -password hunter2 -character Steve -model slim
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/flagx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/config"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/services"
)

type seedArgs struct {
	email      string
	password   string
	characters []string
	model      string
}

type listFlag []string

func (l *listFlag) String() string { return fmt.Sprint(*l) }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseArgs(args []string) (*seedArgs, error) {
	args = flagx.FilterArgs(args, []string{"-email", "-password", "-character", "-model"})

	a := &seedArgs{}
	var chars listFlag
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.StringVar(&a.email, "email", "", "account email")
	fs.StringVar(&a.password, "password", "", "account password")
	fs.Var(&chars, "character", "character name, may be repeated")
	fs.StringVar(&a.model, "model", string(models.ModelDefault), "skin model of created characters")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if a.email == "" || a.password == "" {
		return nil, errors.New("-email and -password are required")
	}
	a.characters = chars
	return a, nil
}

func run(ctx context.Context, accounts *services.AccountService, a *seedArgs) error {
	user, err := accounts.FindUser(ctx, a.email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		user, err = accounts.CreateUser(ctx, a.email, a.password)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		log.Printf("created user %s (%s)", a.email, common.Unsign(user.UUID))
	case err != nil:
		return fmt.Errorf("find user: %w", err)
	default:
		log.Printf("user %s already exists", a.email)
	}

	for _, name := range a.characters {
		c, err := accounts.CreateCharacter(ctx, user.ID, name, models.ParseModelType(a.model))
		if err != nil {
			return fmt.Errorf("create character %s: %w", name, err)
		}
		log.Printf("created character %s (%s)", c.Name, common.Unsign(c.UUID))
	}
	return nil
}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig(os.Args[1:])

	a, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	if err := run(ctx, services.NewAccountService(db, rm), a); err != nil {
		log.Fatalf("%v", err)
	}
}
