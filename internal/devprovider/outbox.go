package devprovider

import "time"

type MailKind string

const (
	MailConfirmSignup MailKind = "confirm_signup"
	MailRecovery      MailKind = "recovery"
)

func (k MailKind) verifyType() string {
	if k == MailRecovery {
		return "recovery"
	}
	return "signup"
}

func (k MailKind) matches(verifyType string) bool {
	switch k {
	case MailRecovery:
		return verifyType == "recovery"
	default:
		return verifyType == "signup" || verifyType == "email"
	}
}

// Mail is an email the provider would have sent.
type Mail struct {
	Kind      MailKind
	To        string
	TokenHash string
	Link      string
	SentAt    time.Time
}

// Outbox returns every captured email, oldest first.
func (p *Provider) Outbox() []Mail {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return append([]Mail(nil), p.outbox...)
}

// LastMail returns the newest email of kind sent to address.
func (p *Provider) LastMail(address string, kind MailKind) (Mail, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	address = normalizeEmail(address)
	for i := len(p.outbox) - 1; i >= 0; i-- {
		if p.outbox[i].To == address && p.outbox[i].Kind == kind {
			return p.outbox[i], true
		}
	}
	return Mail{}, false
}
