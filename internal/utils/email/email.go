package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// GoalAlert describes a goal that is unlikely to be funded by its deadline
type GoalAlert struct {
	To                 string
	Username           string
	GoalName           string
	Currency           string
	Remaining          float64
	TargetDate         time.Time
	SuccessProbability float64
	MedianMonths       float64
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendGoalAtRiskAlert warns the owner that a goal is behind schedule
func (s *Sender) SendGoalAtRiskAlert(alert GoalAlert) error {
	if !s.cfg.SMTPEnabled() {
		return fmt.Errorf("smtp is not configured")
	}
	if alert.To == "" {
		return fmt.Errorf("recipient address is empty")
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{alert.To}
	e.Subject = fmt.Sprintf("Your goal \"%s\" is at risk", alert.GoalName)

	body := fmt.Sprintf("Dear %s,\n\n", alert.Username)
	body += fmt.Sprintf(
		"Based on your current income and spending, there is a %.0f%% chance of saving "+
			"the remaining %.2f %s for \"%s\" by %s.\n",
		alert.SuccessProbability, alert.Remaining, alert.Currency, alert.GoalName,
		alert.TargetDate.Format("2006-01-02"),
	)
	if alert.MedianMonths > 0 {
		body += fmt.Sprintf("At the current pace the goal is most likely reached in %.0f months.\n", alert.MedianMonths)
	}
	body += "Consider raising your monthly contribution or moving the target date.\n"
	body += "\nBest regards,\nGoal Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", alert.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", alert.To, e.Subject)
	return nil
}
