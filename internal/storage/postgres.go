package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// encodeEmbedding packs a float32 vector as little-endian bytes for BYTEA
// storage; decodeEmbedding reverses it.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func (s *PostgresStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, title, body, entry_date, entry_timezone, source_path, source_type,
			text_hash, embedding, sentiment, language, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)`,
		entry.ID, entry.Title, entry.Body, entry.EntryDate, entry.EntryTimezone,
		entry.SourcePath, entry.SourceType, entry.TextHash, encodeEmbedding(entry.Embedding),
		entry.Sentiment, entry.Language, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apperr.Wrap(apperr.CodeConflict, err, "duplicate entry content")
		}
		return apperr.Wrap(apperr.CodeInternal, err, "error creating entry")
	}
	return nil
}

const entryColumns = `id, coalesce(title, ''), body, entry_date, entry_timezone, source_path,
	source_type, text_hash, embedding, sentiment, coalesce(language, ''), created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*models.Entry, error) {
	var e models.Entry
	var embedding []byte
	err := row.Scan(&e.ID, &e.Title, &e.Body, &e.EntryDate, &e.EntryTimezone, &e.SourcePath,
		&e.SourceType, &e.TextHash, &embedding, &e.Sentiment, &e.Language, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Embedding = decodeEmbedding(embedding)
	return &e, nil
}

func (s *PostgresStorage) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "entry %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading entry")
	}
	return entry, nil
}

func (s *PostgresStorage) SearchLexical(ctx context.Context, query string, limit int) ([]ScoredEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`,
			ts_rank(to_tsvector('english', coalesce(title, '') || ' ' || body),
				plainto_tsquery('english', $1)) AS score
		FROM entries
		WHERE to_tsvector('english', coalesce(title, '') || ' ' || body) @@ plainto_tsquery('english', $1)
		ORDER BY score DESC, entry_date DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error searching entries")
	}
	defer rows.Close()

	var results []ScoredEntry
	for rows.Next() {
		var e models.Entry
		var embedding []byte
		var score float64
		err := rows.Scan(&e.ID, &e.Title, &e.Body, &e.EntryDate, &e.EntryTimezone, &e.SourcePath,
			&e.SourceType, &e.TextHash, &embedding, &e.Sentiment, &e.Language,
			&e.CreatedAt, &e.UpdatedAt, &score)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning entry")
		}
		e.Embedding = decodeEmbedding(embedding)
		results = append(results, ScoredEntry{Entry: &e, Score: score})
	}
	return results, rows.Err()
}

func (s *PostgresStorage) EntriesWithEmbeddings(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading embedded entries")
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStorage) EntryTagNames(ctx context.Context, entryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM entry_tags et
		JOIN tags t ON t.id = et.tag_id
		WHERE et.entry_id = $1
		ORDER BY t.name`, entryID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading entry tags")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning tag name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PostgresStorage) GetIndexState(ctx context.Context) (*models.IndexState, error) {
	var state models.IndexState
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_model, embedding_version, built_at FROM index_state WHERE id = 1`).
		Scan(&state.EmbeddingModel, &state.EmbeddingVersion, &state.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "semantic index not built")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading index state")
	}
	return &state, nil
}

func (s *PostgresStorage) SetIndexState(ctx context.Context, state models.IndexState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_state (id, embedding_model, embedding_version, built_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			embedding_version = excluded.embedding_version,
			built_at = excluded.built_at`,
		state.EmbeddingModel, state.EmbeddingVersion, state.BuiltAt)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error saving index state")
	}
	return nil
}

// CreateTag inserts a tag and its aliases in one transaction. Name and
// alias collisions anywhere in the vocabulary abort with a conflict error.
func (s *PostgresStorage) CreateTag(ctx context.Context, tag models.Tag, aliases []string) (*models.Tag, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error starting transaction")
	}
	defer tx.Rollback()

	candidates := append([]string{tag.Name}, aliases...)
	var clash int
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM (
			SELECT name AS text FROM tags
			UNION ALL
			SELECT text FROM aliases
		) names WHERE lower(names.text) = ANY($1)`, pq.Array(lowerAll(candidates))).Scan(&clash)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error checking vocabulary conflicts")
	}
	if clash > 0 {
		return nil, apperr.New(apperr.CodeConflict, "tag %q or one of its aliases already exists", tag.Name)
	}

	tag.ID = uuid.New().String()
	tag.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tags (id, name, parent_id, description, category, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6)`,
		tag.ID, tag.Name, tag.ParentID, tag.Description, tag.Category, tag.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error creating tag")
	}

	for _, alias := range aliases {
		_, err = tx.ExecContext(ctx, `INSERT INTO aliases (id, tag_id, text) VALUES ($1, $2, $3)`,
			uuid.New().String(), tag.ID, alias)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error creating alias")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error committing tag")
	}
	return &tag, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func (s *PostgresStorage) DeleteTag(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error deleting tag")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.CodeNotFound, "tag %q not found", name)
	}
	return nil
}

func (s *PostgresStorage) GetVocabulary(ctx context.Context) (models.ControlledVocabulary, error) {
	vocab := models.ControlledVocabulary{Aliases: make(map[string]string)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, t.description, t.category, coalesce(array_agg(a.text) FILTER (WHERE a.text IS NOT NULL), '{}')
		FROM tags t
		LEFT JOIN aliases a ON a.tag_id = t.id
		GROUP BY t.id, t.name, t.description, t.category
		ORDER BY t.name`)
	if err != nil {
		return vocab, apperr.Wrap(apperr.CodeInternal, err, "error loading vocabulary")
	}
	defer rows.Close()

	for rows.Next() {
		var vt models.VocabularyTag
		if err := rows.Scan(&vt.Name, &vt.Description, &vt.Category, pq.Array(&vt.Aliases)); err != nil {
			return vocab, apperr.Wrap(apperr.CodeInternal, err, "error scanning vocabulary tag")
		}
		vocab.Tags = append(vocab.Tags, vt)
		for _, alias := range vt.Aliases {
			vocab.Aliases[alias] = vt.Name
		}
	}
	return vocab, rows.Err()
}

// AddEntryTag associates a tag with an entry. Re-applying the same tag is
// a no-op, not an error.
func (s *PostgresStorage) AddEntryTag(ctx context.Context, entryID, tagName string) error {
	var tagID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE lower(name) = lower($1)`, tagName).Scan(&tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.CodeNotFound, "tag %q not found", tagName)
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error looking up tag")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entry_tags (entry_id, tag_id)
		SELECT e.id, $2 FROM entries e WHERE e.id = $1
		ON CONFLICT (entry_id, tag_id) DO NOTHING`, entryID, tagID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error tagging entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either a duplicate (fine) or a missing entry; distinguish them.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM entries WHERE id = $1)`, entryID).Scan(&exists); err != nil {
			return apperr.Wrap(apperr.CodeInternal, err, "error checking entry")
		}
		if !exists {
			return apperr.New(apperr.CodeNotFound, "entry %s not found", entryID)
		}
	}
	return nil
}

func (s *PostgresStorage) TagStatistics(ctx context.Context) ([]models.TagStatistic, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&total); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error counting entries")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, count(et.entry_id), coalesce(max(et.created_at), 'epoch'::timestamptz)
		FROM tags t
		LEFT JOIN entry_tags et ON et.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY count(et.entry_id) DESC, t.name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading tag statistics")
	}
	defer rows.Close()

	var stats []models.TagStatistic
	for rows.Next() {
		var st models.TagStatistic
		if err := rows.Scan(&st.Tag, &st.Count, &st.RecentUsage); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning tag statistic")
		}
		if total > 0 {
			st.Percentage = float64(st.Count) / float64(total) * 100
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, system_prompt, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.Title, conv.SystemPrompt, string(conv.Provider), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error creating conversation")
	}
	return nil
}

func (s *PostgresStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	var provider string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, system_prompt, provider, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.Title, &conv.SystemPrompt, &provider, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "conversation %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading conversation")
	}
	conv.Provider = models.Provider(provider)
	return &conv, nil
}

func (s *PostgresStorage) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, count(m.id), c.updated_at
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.title, c.updated_at
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error listing conversations")
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning conversation")
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteConversation cascades to messages and citations. Deleting an
// unknown id is a no-op.
func (s *PostgresStorage) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error deleting conversation")
	}
	return nil
}

func (s *PostgresStorage) AppendTurn(ctx context.Context, conversationID string, user, assistant models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error starting transaction")
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error checking conversation")
	}
	if !exists {
		return apperr.New(apperr.CodeNotFound, "conversation %s not found", conversationID)
	}

	for _, msg := range []*models.Message{&user, &assistant} {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, conversationID, msg.Role, msg.Content, msg.CreatedAt)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, err, "error appending message")
		}
		for _, c := range msg.Citations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO citations (id, message_id, entry_id, snippet, relevance_score, citation_number)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New().String(), msg.ID, c.EntryID, c.Snippet, c.RelevanceScore, c.CitationNumber)
			if err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "error appending citation")
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, conversationID, assistant.CreatedAt); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error updating conversation")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error committing turn")
	}
	return nil
}

func (s *PostgresStorage) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.role, m.content, m.created_at
		FROM messages m
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC`, conversationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading messages")
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg := models.Message{ConversationID: conversationID}
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning message")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range messages {
		if messages[i].Role != models.RoleAssistant {
			continue
		}
		citations, err := s.messageCitations(ctx, messages[i].ID)
		if err != nil {
			return nil, err
		}
		messages[i].Citations = citations
	}
	return messages, nil
}

func (s *PostgresStorage) messageCitations(ctx context.Context, messageID string) ([]models.Citation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.entry_id, coalesce(e.title, ''), e.entry_date, c.snippet, c.relevance_score, c.citation_number
		FROM citations c
		JOIN entries e ON e.id = c.entry_id
		WHERE c.message_id = $1
		ORDER BY c.citation_number ASC`, messageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "error loading citations")
	}
	defer rows.Close()

	var citations []models.Citation
	for rows.Next() {
		c := models.Citation{MessageID: messageID}
		if err := rows.Scan(&c.ID, &c.EntryID, &c.EntryTitle, &c.EntryDate,
			&c.Snippet, &c.RelevanceScore, &c.CitationNumber); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "error scanning citation")
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}
