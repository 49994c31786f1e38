package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"liquidreach/engine"
	"liquidreach/models"
	"liquidreach/store"
)

// ReplyWorker polls each active persona's inbox for unseen mail and routes
// the sender address into the engine's reply handler, which halts the
// sequence for any matching ACTIVE prospect.
type ReplyWorker struct {
	store    *store.GormStore
	engine   *engine.Engine
	interval time.Duration
	logger   *logrus.Logger
}

func NewReplyWorker(st *store.GormStore, eng *engine.Engine, interval time.Duration, logger *logrus.Logger) *ReplyWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReplyWorker{
		store:    st,
		engine:   eng,
		interval: interval,
		logger:   logger,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	rw.logger.Info("reply detection worker started")

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reply detection worker shutting down")
			return
		case <-ticker.C:
			rw.checkInboxes()
		}
	}
}

func (rw *ReplyWorker) checkInboxes() {
	personas, err := rw.store.ActivePersonas()
	if err != nil {
		rw.logger.WithError(err).Error("failed to fetch personas for reply detection")
		return
	}

	for i := range personas {
		if err := rw.checkPersonaInbox(&personas[i]); err != nil {
			rw.logger.WithField("persona_id", personas[i].ID).WithError(err).Error("inbox check failed")
		}
	}
}

func (rw *ReplyWorker) checkPersonaInbox(p *models.Persona) error {
	c, err := rw.dial(p)
	if err != nil {
		return fmt.Errorf("connecting to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(p.IMAPUsername, p.IMAPPassword); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("selecting inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("searching unseen mail: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		mr, err := mail.CreateReader(body)
		if err != nil {
			rw.logger.WithError(err).Warn("failed to parse inbound message")
			continue
		}
		from, err := mr.Header.AddressList("From")
		if err != nil || len(from) == 0 {
			continue
		}
		addr := from[0].Address
		if err := rw.engine.HandleEmailReply(addr); err != nil {
			rw.logger.WithField("address", addr).WithError(err).Error("reply handling failed")
		}
	}

	if err := <-done; err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}

	// Flag the batch as seen so the next poll skips it.
	flagOp := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, flagOp, []interface{}{imap.SeenFlag}, nil); err != nil {
		rw.logger.WithError(err).Warn("failed to flag messages as seen")
	}
	return nil
}

func (rw *ReplyWorker) dial(p *models.Persona) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", p.IMAPHost, p.IMAPPort)

	switch strings.ToUpper(p.IMAPEncryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, &tls.Config{ServerName: p.IMAPHost})
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(&tls.Config{ServerName: p.IMAPHost}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}
