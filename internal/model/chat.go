package model

// InboxResult — список собеседников и счётчики непрочитанного по каждому.
type InboxResult struct {
	Peers        []Peer        `json:"peers"`
	UnreadCounts map[int64]int `json:"unread_counts"`
}

// HistoryResult — полная история переписки с одним собеседником.
// UnreadCount — остаток непрочитанного после пометки истории прочитанной.
type HistoryResult struct {
	Peer        Peer      `json:"peer"`
	Messages    []Message `json:"messages"`
	UnreadCount int       `json:"unread_count"`
}

// SendMessageRequest — тело запроса на отправку сообщения.
type SendMessageRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

// UploadResult — ответ на загрузку картинки.
type UploadResult struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}
