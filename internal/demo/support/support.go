// Package support is a help desk demo on top of the dispatch chain.
// Tickets escalate through the support tiers until one of them takes the ticket.
package support

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logging"

	"go.llib.dev/sharedrt/pkg/chain"
)

const ErrInvalidDesk errorkit.Error = "support: invalid desk configuration"

type Category string

const (
	General    Category = "GENERAL"
	Technical  Category = "TECHNICAL"
	Escalation Category = "ESCALATION"
)

func (c Category) Valid() bool {
	switch c {
	case General, Technical, Escalation:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID       string
	Category Category
	Summary  string
}

type Reply struct {
	TicketID string
	Tier     string
	Message  string
}

// Tier is a support level. It takes every ticket of the categories it handles.
type Tier struct {
	Name    string     `toml:"name"`
	Handles []Category `toml:"handles"`
	Reply   string     `toml:"reply"`

	processed atomic.Int64
}

func (t *Tier) HandlerName() string { return t.Name }

func (t *Tier) CanHandle(ctx context.Context, ticket Ticket) bool {
	return slices.Contains(t.Handles, ticket.Category)
}

func (t *Tier) Process(ctx context.Context, ticket Ticket) (Reply, error) {
	t.processed.Add(1)
	return Reply{TicketID: ticket.ID, Tier: t.Name, Message: t.Reply}, nil
}

// Processed tells how many tickets the tier took.
func (t *Tier) Processed() int { return int(t.processed.Load()) }

// Desk is the ordered list of tiers.
type Desk struct {
	Name  string  `toml:"name"`
	Tiers []*Tier `toml:"tier"`
}

//go:embed desk.toml
var defaultDesk string

// DefaultDesk is the three level desk of BasicSupport, TechnicalSupport and ManagerSupport.
func DefaultDesk() (*Desk, error) {
	return LoadDesk(strings.NewReader(defaultDesk))
}

// LoadDesk reads a Desk from its TOML description.
func LoadDesk(r io.Reader) (*Desk, error) {
	var d Desk
	md, err := toml.NewDecoder(r).Decode(&d)
	if err != nil {
		return nil, ErrInvalidDesk.Wrap(err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, ErrInvalidDesk.F("unknown keys: %v", undecoded)
	}
	return &d, d.Validate()
}

func (d *Desk) Validate() error {
	if len(d.Tiers) == 0 {
		return ErrInvalidDesk.F("no tiers")
	}
	names := make(map[string]struct{}, len(d.Tiers))
	for i, t := range d.Tiers {
		if t.Name == "" {
			return ErrInvalidDesk.F("tier #%d has no name", i)
		}
		if _, ok := names[t.Name]; ok {
			return ErrInvalidDesk.F("duplicate tier: %s", t.Name)
		}
		names[t.Name] = struct{}{}
		for _, c := range t.Handles {
			if !c.Valid() {
				return ErrInvalidDesk.F("tier %s handles unknown category %q", t.Name, c)
			}
		}
	}
	return nil
}

// Chain builds the dispatch chain in tier order.
func (d *Desk) Chain(l *logging.Logger) *chain.Chain[Ticket, Reply] {
	b := chain.Builder[Ticket, Reply]{Name: d.Name, Logger: l}
	for _, t := range d.Tiers {
		b.Append(t)
	}
	return b.Build()
}

// Submit routes a ticket through the desk.
// A ticket that no tier takes is reported as unanswered.
func Submit(ctx context.Context, c *chain.Chain[Ticket, Reply], ticket Ticket) (Reply, error) {
	out, err := c.Handle(ctx, ticket)
	if err != nil {
		return Reply{}, err
	}
	if !out.Handled {
		return Reply{TicketID: ticket.ID, Message: fmt.Sprintf("no tier takes %s tickets", ticket.Category)}, nil
	}
	return out.Result, nil
}
