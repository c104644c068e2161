package users

import (
	"context"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// MailMessage is a rendered notification ready to send.
type MailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers notifications.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg MailMessage) error

func (f MailerFunc) Send(ctx context.Context, msg MailMessage) error {
	return f(ctx, msg)
}

// LogMailer writes messages to the logger instead of delivering them.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(_ context.Context, msg MailMessage) error {
	logger := m.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	logger.Info("mail message", "to", msg.To, "subject", msg.Subject, "message", print.MaybePrettyJSON(msg))
	return nil
}

const (
	welcomeSubjectTpl = `Welcome to {{ app }}, {{ name }}`
	welcomeBodyTpl    = `Hi {{ name }},

An account has been created for {{ email }} on {{ app }}.
{% if role != "user" %}You have been granted the {{ role }} role.
{% endif %}`

	adminSubjectTpl = `[{{ app }}] New user {{ email }}`
	adminBodyTpl    = `A new {{ role }} account was created for {{ name }} <{{ email }}> by {{ actor }}.`
)

type mailTemplate struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// mustMailTemplate compiles plain text templates, so HTML escaping is off.
func mustMailTemplate(subject, body string) mailTemplate {
	return mailTemplate{
		subject: pongo2.Must(pongo2.FromString(plainText(subject))),
		body:    pongo2.Must(pongo2.FromString(plainText(body))),
	}
}

func plainText(tpl string) string {
	return "{% autoescape off %}" + tpl + "{% endautoescape %}"
}

func (t mailTemplate) render(from, to string, data pongo2.Context) (MailMessage, error) {
	subject, err := t.subject.Execute(data)
	if err != nil {
		return MailMessage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail subject")
	}
	body, err := t.body.Execute(data)
	if err != nil {
		return MailMessage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail body")
	}
	return MailMessage{
		From:    from,
		To:      to,
		Subject: strings.TrimSpace(subject),
		Body:    body,
	}, nil
}

var (
	welcomeTemplate = mustMailTemplate(welcomeSubjectTpl, welcomeBodyTpl)
	adminTemplate   = mustMailTemplate(adminSubjectTpl, adminBodyTpl)
)

// NotificationSink is an ActivitySink that mails the new user and the
// configured system administrators when an account is created. Other events
// are ignored.
type NotificationSink struct {
	mailer Mailer
	logger Logger
	app    string
	from   string
	admins []string
}

// NewNotificationSink builds a sink from cfg. Invalid admin addresses are
// dropped.
func NewNotificationSink(cfg Config, mailer Mailer) *NotificationSink {
	s := &NotificationSink{
		mailer: mailer,
		logger: defaultLogger(),
		app:    "go-users",
		from:   "no-reply@example.com",
	}

	if cfg != nil {
		if cfg.GetAppName() != "" {
			s.app = cfg.GetAppName()
		}
		if cfg.GetMailFrom() != "" {
			s.from = cfg.GetMailFrom()
		}
		for _, admin := range cfg.GetSystemAdmins() {
			admin = normalizeEmail(admin)
			if err := is.Email.Validate(admin); err != nil || admin == "" {
				s.logger.Warn("ignoring invalid system admin address", "email", admin)
				continue
			}
			s.admins = append(s.admins, admin)
		}
	}

	if s.mailer == nil {
		s.mailer = LogMailer{Logger: s.logger}
	}

	return s
}

func (s *NotificationSink) WithLogger(logger Logger) *NotificationSink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Admins returns the validated administrator addresses.
func (s *NotificationSink) Admins() []string {
	return append([]string(nil), s.admins...)
}

func (s *NotificationSink) Record(ctx context.Context, event ActivityEvent) error {
	if event.EventType != ActivityEventUserCreated {
		return nil
	}

	email, _ := event.Metadata["email"].(string)
	name, _ := event.Metadata["name"].(string)
	role, _ := event.Metadata["role"].(string)

	data := pongo2.Context{
		"app":   s.app,
		"name":  name,
		"email": email,
		"role":  role,
		"actor": event.Actor.ID,
	}

	var first error
	send := func(tpl mailTemplate, to string) {
		msg, err := tpl.render(s.from, to, data)
		if err == nil {
			err = s.mailer.Send(ctx, msg)
		}
		if err != nil {
			s.logger.Warn("notification failed", "to", to, "event", string(event.EventType), "error", err)
			if first == nil {
				first = err
			}
		}
	}

	if email != "" {
		send(welcomeTemplate, email)
	}

	for _, admin := range s.admins {
		if admin == email {
			continue
		}
		send(adminTemplate, admin)
	}

	return first
}
