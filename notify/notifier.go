// Package notify composes and sends the email notifications fired by data
// changes: new feedback, new subscriptions and user registrations. Dispatch
// is synchronous inside the triggering request; a transport failure is
// returned to the caller and fails that request.
package notify

import (
	"fmt"

	"github.com/bulletin/bboard/models"
)

// Mailer delivers a single message. utils.SMTPMailer is the production
// implementation; tests substitute an in-memory recorder.
type Mailer interface {
	Send(to, subject, body string) error
}

// Notifier sends entity-change notifications. It always receives the exact
// entities that triggered the event, never re-queried "latest row" stand-ins.
type Notifier struct {
	mailer  Mailer
	baseURL string
	admins  []string
}

// New builds a Notifier. baseURL is the public site root used in links,
// admins is the list of administrator addresses.
func New(mailer Mailer, baseURL string, admins []string) *Notifier {
	return &Notifier{mailer: mailer, baseURL: baseURL, admins: admins}
}

// FeedbackCreated mails the post author about a new comment and notifies admins.
func (n *Notifier) FeedbackCreated(post *models.Post, author *models.User, fb *models.Feedback) error {
	if err := n.mailAdmins(fmt.Sprintf("New comment in %s post", post.Header)); err != nil {
		return err
	}
	if author.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("New comment in %s post", post.Header)
	body := fmt.Sprintf("Feedback on : %s post\nLink: %s", post.Header, post.URL(n.baseURL))
	return n.mailer.Send(author.Email, subject, body)
}

// SubscriptionCreated confirms a new subscription to the subscriber and notifies admins.
func (n *Notifier) SubscriptionCreated(post *models.Post, subscriber *models.User, fb *models.Feedback) error {
	if err := n.mailAdmins(fmt.Sprintf("Successfully received feedback for %s", subscriber.Username)); err != nil {
		return err
	}
	if subscriber.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("Your review has been successfully received in post %s", post.Header)
	body := fmt.Sprintf("Successfully received feedback in post %s\nLink: %s", post.Header, post.URL(n.baseURL))
	return n.mailer.Send(subscriber.Email, subject, body)
}

// UserRegistered tells admins about a fresh registration.
func (n *Notifier) UserRegistered(user *models.User) error {
	return n.mailAdmins(fmt.Sprintf("User %s registered on the site.", user.Username))
}

func (n *Notifier) mailAdmins(message string) error {
	for _, addr := range n.admins {
		if err := n.mailer.Send(addr, "", message); err != nil {
			return err
		}
	}
	return nil
}
