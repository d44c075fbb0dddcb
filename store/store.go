// Package store provides relational persistence for bots and their
// tuning parameters.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/criadex/criabot/internal/profile"
)

// Bot is a persisted bot record.
type Bot struct {
	ID      int32
	Name    string
	Created time.Time
}

// BotParameters holds the per-bot tuning knobs. The chat core re-reads
// them each turn; they are immutable for the duration of a turn.
type BotParameters struct {
	BotID int32

	// Model params
	MaxInputTokens int
	MaxReplyTokens int
	Temperature    float64
	TopP           float64

	// Retrieval params
	TopK int
	MinK float64

	// Rerank params
	TopN int
	MinN float64

	// Context params
	LLMGenerateRelatedPrompts bool
	NoContextMessage          string
	NoContextUseMessage       bool
	NoContextLLMGuess         bool
	SystemMessage             string
}

// DefaultBotParameters returns the parameter defaults applied on bot
// creation when the caller leaves a knob unset.
func DefaultBotParameters() BotParameters {
	return BotParameters{
		MaxInputTokens:            2000,
		MaxReplyTokens:            1024,
		Temperature:               0.9,
		TopP:                      0,
		TopK:                      10,
		MinK:                      0.5,
		TopN:                      3,
		MinN:                      0.7,
		LLMGenerateRelatedPrompts: true,
		NoContextMessage:          "Sorry, I'm not sure about that.",
		NoContextUseMessage:       false,
		NoContextLLMGuess:         false,
	}
}

// Driver is the interface implemented by each database backend.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	CreateBot(ctx context.Context, name string) (*Bot, error)
	GetBot(ctx context.Context, name string) (*Bot, error)
	DeleteBot(ctx context.Context, name string) error
	CountBots(ctx context.Context, names ...string) (int, error)

	UpsertBotParameters(ctx context.Context, params *BotParameters) error
	GetBotParameters(ctx context.Context, botID int32) (*BotParameters, error)
	DeleteBotParameters(ctx context.Context, botID int32) error
}

// Store provides database access to all persisted objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateBot inserts a bot row and returns it with the generated id.
func (s *Store) CreateBot(ctx context.Context, name string) (*Bot, error) {
	bot, err := s.driver.CreateBot(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create bot %s", name)
	}
	return bot, nil
}

// GetBot returns the bot row, or nil when no bot has that name.
func (s *Store) GetBot(ctx context.Context, name string) (*Bot, error) {
	bot, err := s.driver.GetBot(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get bot %s", name)
	}
	return bot, nil
}

func (s *Store) DeleteBot(ctx context.Context, name string) error {
	if err := s.driver.DeleteBot(ctx, name); err != nil {
		return errors.Wrapf(err, "failed to delete bot %s", name)
	}
	return nil
}

// BotsExist reports whether every named bot exists.
func (s *Store) BotsExist(ctx context.Context, names ...string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}

	distinct := make(map[string]struct{}, len(names))
	for _, name := range names {
		distinct[name] = struct{}{}
	}

	unique := make([]string, 0, len(distinct))
	for name := range distinct {
		unique = append(unique, name)
	}

	count, err := s.driver.CountBots(ctx, unique...)
	if err != nil {
		return false, errors.Wrap(err, "failed to count bots")
	}
	return count == len(unique), nil
}

func (s *Store) UpsertBotParameters(ctx context.Context, params *BotParameters) error {
	if err := s.driver.UpsertBotParameters(ctx, params); err != nil {
		return errors.Wrapf(err, "failed to upsert parameters for bot %d", params.BotID)
	}
	return nil
}

// GetBotParameters returns the parameter row, or nil when absent.
func (s *Store) GetBotParameters(ctx context.Context, botID int32) (*BotParameters, error) {
	params, err := s.driver.GetBotParameters(ctx, botID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get parameters for bot %d", botID)
	}
	return params, nil
}

func (s *Store) DeleteBotParameters(ctx context.Context, botID int32) error {
	if err := s.driver.DeleteBotParameters(ctx, botID); err != nil {
		return errors.Wrapf(err, "failed to delete parameters for bot %d", botID)
	}
	return nil
}
