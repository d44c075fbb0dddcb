package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/criadex/criabot/store"
)

func (d *DB) CreateBot(ctx context.Context, name string) (*store.Bot, error) {
	result, err := d.db.ExecContext(ctx, `INSERT INTO bots (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	bot := store.Bot{ID: int32(id)}
	err = d.db.QueryRowContext(ctx, `
		SELECT name, created FROM bots WHERE id = ?
	`, id).Scan(&bot.Name, &bot.Created)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (d *DB) GetBot(ctx context.Context, name string) (*store.Bot, error) {
	bot := store.Bot{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, created FROM bots WHERE name = ?
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
	_, err := d.db.ExecContext(ctx, `DELETE FROM bots WHERE name = ?`, name)
	return err
}

func (d *DB) CountBots(ctx context.Context, names ...string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	args := make([]interface{}, len(names))
	for i, name := range names {
		args[i] = name
	}

	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT name) FROM bots WHERE name IN (`+placeholders+`)`,
		args...,
	).Scan(&count)
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bot_id) DO UPDATE SET
			max_input_tokens = excluded.max_input_tokens,
			max_reply_tokens = excluded.max_reply_tokens,
			temperature = excluded.temperature,
			top_p = excluded.top_p,
			top_k = excluded.top_k,
			min_k = excluded.min_k,
			top_n = excluded.top_n,
			min_n = excluded.min_n,
			llm_generate_related_prompts = excluded.llm_generate_related_prompts,
			no_context_message = excluded.no_context_message,
			no_context_use_message = excluded.no_context_use_message,
			no_context_llm_guess = excluded.no_context_llm_guess,
			system_message = excluded.system_message
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
		FROM bot_parameters WHERE bot_id = ?
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
	_, err := d.db.ExecContext(ctx, `DELETE FROM bot_parameters WHERE bot_id = ?`, botID)
	return err
}
