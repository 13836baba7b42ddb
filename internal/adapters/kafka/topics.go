package kafka

// Default topics
const (
	TopicTaskEvents = "finsight.tasks"
)
