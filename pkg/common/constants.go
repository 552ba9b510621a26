package common

const (
	RedisStreamArticleAnalyze    = "article.analyze"
	RedisStreamArticleAnalyzeDLQ = "article.analyze.dlq"

	RedisStreamGroup    = "worker-group"
	RedisStreamConsumer = "worker-consumer"
)
