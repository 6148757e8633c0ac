package jobs

import (
	"context"

	"github.com/crod-center/crod-bot/internal/notify"
)

type Backuper interface {
	TriggerBackup(ctx context.Context) (string, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, text string) int
}

// BackupJob запускает бэкап и сообщает результат в служебные чаты с тегом #backup.
func BackupJob(b Backuper, sink Broadcaster) Job {
	return func(ctx context.Context) error {
		out, err := b.TriggerBackup(ctx)
		if err != nil {
			sink.Broadcast(ctx, notify.Tagged("❌ Резервное копирование не удалось: "+err.Error(), notify.TagBackup))
			return err
		}
		text := "✅ Резервная копия создана"
		if out != "" {
			text += "\n" + out
		}
		sink.Broadcast(ctx, notify.Tagged(text, notify.TagBackup))
		return nil
	}
}
