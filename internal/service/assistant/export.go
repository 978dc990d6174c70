package assistant

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/chat"
)

// ExportFilename is the suggested name of the history download.
const ExportFilename = "emotion_chat_history.csv"

// WriteHistoryCSV writes turns in append order under a User,Assistant header.
func WriteHistoryCSV(w io.Writer, turns []chat.Turn) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"User", "Assistant"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range turns {
		if err := cw.Write([]string{t.User, t.Assistant}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
