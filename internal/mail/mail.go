package mail

import (
	"gopkg.in/gomail.v2"
)

// Sender delivers backup archives over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

// New returns a Sender for the given SMTP endpoint, or nil when host is
// empty (mail disabled). Callers treat a nil Sender as "not configured".
func New(host string, port int, user, pass, from string) *Sender {
	if host == "" {
		return nil
	}
	return &Sender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

// Send mails attachmentPath to a single recipient. Dial, send, and close
// happen per call; backup cadences are far too slow to need a held
// connection.
func (s *Sender) Send(to, subject, body, attachmentPath string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.Attach(attachmentPath)
	return s.dialer.DialAndSend(m)
}
