package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
)

//go:embed templates/*.html
var templatesFS embed.FS

var verifyTemplate = template.Must(template.ParseFS(templatesFS, "templates/verify.html"))

const (
	codeLength    = 6
	verifySubject = "Verification code"
)

// Verifier issues a verification code, remembers it and mails it out.
type Verifier struct {
	codes  CodeStore
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier whose mails state ttl as the code lifetime.
// ttl should match the CodeStore's.
func NewVerifier(codes CodeStore, mailer Mailer, ttl time.Duration) *Verifier {
	return &Verifier{codes: codes, mailer: mailer, ttl: ttl, now: time.Now}
}

// SendCode generates a code for email, stores it and mails it.
func (v *Verifier) SendCode(ctx context.Context, email string) error {
	code, err := common.RandomCode(codeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	if err := v.codes.Save(ctx, email, code); err != nil {
		return fmt.Errorf("save code: %w", err)
	}

	var body bytes.Buffer
	err = verifyTemplate.Execute(&body, struct {
		Code    string
		Minutes int
		Year    int
	}{Code: code, Minutes: int(v.ttl.Minutes()), Year: v.now().Year()})
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}

	return v.mailer.Send(ctx, Message{To: email, Subject: verifySubject, HTML: body.String()})
}
