package assignment

import (
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/model"
)

// QueueConfig is process-wide and loaded once at startup. The defaults keep
// queue mode off, so chats dispatch directly unless it is explicitly enabled.
type QueueConfig struct {
	QueueModeEnabled            bool
	MaxQueueWaitTimeSeconds     int
	MaxQueueSizePerDepartment   int
	NotifyCommercialsOnNewChats bool
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		QueueModeEnabled:            false,
		MaxQueueWaitTimeSeconds:     120,
		MaxQueueSizePerDepartment:   50,
		NotifyCommercialsOnNewChats: true,
	}
}

func LoadQueueConfig() QueueConfig {
	defaults := DefaultQueueConfig()
	return QueueConfig{
		QueueModeEnabled:            env.GetBool(env.QueueModeEnabled, defaults.QueueModeEnabled),
		MaxQueueWaitTimeSeconds:     env.GetInt(env.QueueMaxWaitSeconds, defaults.MaxQueueWaitTimeSeconds),
		MaxQueueSizePerDepartment:   env.GetInt(env.QueueMaxSizePerDept, defaults.MaxQueueSizePerDepartment),
		NotifyCommercialsOnNewChats: env.GetBool(env.QueueNotifyCommercials, defaults.NotifyCommercialsOnNewChats),
	}
}

// QueuePolicy decides direct dispatch versus queue-first. It is pure policy:
// evaluated once, synchronously, before the scheduler runs; queued chats are
// revisited by whoever re-invokes the scheduler.
type QueuePolicy struct {
	cfg QueueConfig
}

func NewQueuePolicy(cfg QueueConfig) *QueuePolicy {
	return &QueuePolicy{cfg: cfg}
}

// ShouldQueue is false whenever queue mode is disabled, and false for URGENT
// chats regardless of configuration.
func (p *QueuePolicy) ShouldQueue(chatID string, priority model.ChatPriority) bool {
	if !p.cfg.QueueModeEnabled {
		return false
	}
	if priority == model.ChatPriorityUrgent {
		return false
	}
	return true
}

func (p *QueuePolicy) Config() QueueConfig {
	return p.cfg
}
