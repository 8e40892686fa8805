package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create сохраняет сообщение; id и created_at заполняются из БД.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	if m.Images == nil {
		m.Images = []string{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (sender_id, receiver_id, content, images)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, is_read, created_at`,
		m.Sender.ID, m.Receiver.ID, m.Content, m.Images,
	).Scan(&m.ID, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

// History — вся переписка пары (a, b) по возрастанию created_at.
func (r *MessageRepository) History(ctx context.Context, a, b int64) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.History", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.content, m.images, m.is_read, m.created_at,
		        s.id, s.display_name, s.avatar_url, s.role,
		        t.id, t.display_name, t.avatar_url, t.role
		 FROM chat_messages m
		 JOIN users s ON s.id = m.sender_id
		 JOIN users t ON t.id = m.receiver_id
		 WHERE LEAST(m.sender_id, m.receiver_id) = LEAST($1::bigint, $2::bigint)
		   AND GREATEST(m.sender_id, m.receiver_id) = GREATEST($1::bigint, $2::bigint)
		 ORDER BY m.created_at, m.id`, a, b,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.History query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.Images, &m.IsRead, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.DisplayName, &m.Sender.AvatarURL, &m.Sender.Role,
			&m.Receiver.ID, &m.Receiver.DisplayName, &m.Receiver.AvatarURL, &m.Receiver.Role); err != nil {
			return nil, fmt.Errorf("msgRepo.History scan: %w", err)
		}
		if m.Images == nil {
			m.Images = []string{}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.History rows: %w", err)
	}
	return messages, nil
}

// MarkRead помечает прочитанными сообщения от peerID к readerID. Возвращает число изменённых строк.
func (r *MessageRepository) MarkRead(ctx context.Context, readerID, peerID int64) (int64, error) {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET is_read = TRUE
		 WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read`, readerID, peerID)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UnreadCount — непрочитанные сообщения от peerID к readerID.
func (r *MessageRepository) UnreadCount(ctx context.Context, readerID, peerID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read`,
		readerID, peerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.UnreadCount: %w", err)
	}
	return n, nil
}

// UnreadCounts — непрочитанное для readerID по отправителям. Нулевые счётчики не возвращаются.
func (r *MessageRepository) UnreadCounts(ctx context.Context, readerID int64) (map[int64]int, error) {
	defer logger.DeferLogDuration("msg.UnreadCounts", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT sender_id, COUNT(*) FROM chat_messages
		 WHERE receiver_id = $1 AND NOT is_read
		 GROUP BY sender_id`, readerID)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.UnreadCounts query: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			sender int64
			n      int
		)
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("msgRepo.UnreadCounts scan: %w", err)
		}
		counts[sender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.UnreadCounts rows: %w", err)
	}
	return counts, nil
}

// DeleteHistory удаляет всю переписку пары. Возвращает число удалённых сообщений.
func (r *MessageRepository) DeleteHistory(ctx context.Context, a, b int64) (int64, error) {
	defer logger.DeferLogDuration("msg.DeleteHistory", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chat_messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`, a, b)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.DeleteHistory: %w", err)
	}
	return tag.RowsAffected(), nil
}
