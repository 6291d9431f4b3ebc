package env

import (
	"os"
	"strconv"
)

const (
	AWSRegion         = "AWS_REGION"
	AWSID             = "AWS_ID"
	AWSSecret         = "AWS_SECRET"
	AWSToken          = "AWS_TOKEN"
	DynamoDBEndpoint  = "DYNAMODB_ENDPOINT"
	UserSecretKey     = "USER_SECRET"
	AuthRedisURL      = "AUTH_REDIS_URL"
	AuthRedisPass     = "AUTH_REDIS_PASS"
	PresenceRedisURL  = "PRESENCE_REDIS_URL"
	PresenceRedisPass = "PRESENCE_REDIS_PASS"
	WebUrl            = "WEB_URL"

	QueueModeEnabled       = "CHAT_QUEUE_MODE_ENABLED"
	QueueMaxWaitSeconds    = "CHAT_QUEUE_MAX_WAIT_SECONDS"
	QueueMaxSizePerDept    = "CHAT_QUEUE_MAX_SIZE_PER_DEPARTMENT"
	QueueNotifyCommercials = "CHAT_QUEUE_NOTIFY_COMMERCIALS"
)

// Validate panics when a variable the servers cannot run without is missing.
// Called from the cmd mains so importing this package has no side effects.
func Validate() {
	required := []string{
		AWSRegion,
		AWSID,
		AWSSecret,
		UserSecretKey,
		AuthRedisURL,
		PresenceRedisURL,
	}
	for _, key := range required {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func GetBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func GetInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
