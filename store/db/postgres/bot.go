package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/criadex/criabot/store"
)

func (d *DB) CreateBot(ctx context.Context, name string) (*store.Bot, error) {
	bot := store.Bot{Name: name}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO bots (name) VALUES ($1)
		RETURNING id, created
	`, name).Scan(&bot.ID, &bot.Created)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (d *DB) GetBot(ctx context.Context, name string) (*store.Bot, error) {
	bot := store.Bot{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, created FROM bots WHERE name = $1
	`, name).Scan(&bot.ID, &bot.Name, &bot.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (d *DB) DeleteBot(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM bots WHERE name = $1`, name)
	return err
}

func (d *DB) CountBots(ctx context.Context, names ...string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT name) FROM bots WHERE name = ANY($1)
	`, pq.Array(names)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (d *DB) UpsertBotParameters(ctx context.Context, params *store.BotParameters) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bot_parameters (
			bot_id, max_input_tokens, max_reply_tokens, temperature, top_p,
			top_k, min_k, top_n, min_n,
			llm_generate_related_prompts,
			no_context_message, no_context_use_message, no_context_llm_guess,
			system_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (bot_id) DO UPDATE SET
			max_input_tokens = EXCLUDED.max_input_tokens,
			max_reply_tokens = EXCLUDED.max_reply_tokens,
			temperature = EXCLUDED.temperature,
			top_p = EXCLUDED.top_p,
			top_k = EXCLUDED.top_k,
			min_k = EXCLUDED.min_k,
			top_n = EXCLUDED.top_n,
			min_n = EXCLUDED.min_n,
			llm_generate_related_prompts = EXCLUDED.llm_generate_related_prompts,
			no_context_message = EXCLUDED.no_context_message,
			no_context_use_message = EXCLUDED.no_context_use_message,
			no_context_llm_guess = EXCLUDED.no_context_llm_guess,
			system_message = EXCLUDED.system_message
	`,
		params.BotID,
		params.MaxInputTokens,
		params.MaxReplyTokens,
		params.Temperature,
		params.TopP,
		params.TopK,
		params.MinK,
		params.TopN,
		params.MinN,
		params.LLMGenerateRelatedPrompts,
		params.NoContextMessage,
		params.NoContextUseMessage,
		params.NoContextLLMGuess,
		params.SystemMessage,
	)
	return err
}

func (d *DB) GetBotParameters(ctx context.Context, botID int32) (*store.BotParameters, error) {
	params := store.BotParameters{}
	err := d.db.QueryRowContext(ctx, `
		SELECT
			bot_id, max_input_tokens, max_reply_tokens, temperature, top_p,
			top_k, min_k, top_n, min_n,
			llm_generate_related_prompts,
			no_context_message, no_context_use_message, no_context_llm_guess,
			system_message
		FROM bot_parameters WHERE bot_id = $1
	`, botID).Scan(
		&params.BotID,
		&params.MaxInputTokens,
		&params.MaxReplyTokens,
		&params.Temperature,
		&params.TopP,
		&params.TopK,
		&params.MinK,
		&params.TopN,
		&params.MinN,
		&params.LLMGenerateRelatedPrompts,
		&params.NoContextMessage,
		&params.NoContextUseMessage,
		&params.NoContextLLMGuess,
		&params.SystemMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &params, nil
}

func (d *DB) DeleteBotParameters(ctx context.Context, botID int32) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM bot_parameters WHERE bot_id = $1`, botID)
	return err
}
