package stack

// DefaultResourceTagKey labels every resource with the service it belongs to.
const DefaultResourceTagKey = "application"

// Container and health check values that are not configurable.
const (
	ContainerStopTimeoutSeconds = 60

	HealthyThresholdCount   = 2
	UnhealthyThresholdCount = 2
)

// FileBucketType tells the application which storage driver to use.
const FileBucketType = "s3"

// Field names inside the generated secrets.
const (
	SigningSecretField = "secret"
	PasswordField      = "password"
)

// Container environment contract. Names are fixed by the deployed application.
const (
	EnvAuthJwtSecret                = "AUTH_JWT_SECRET"
	EnvSessionSecret                = "SESSION_SECRET"
	EnvPostgresHost                 = "POSTGRES_HOST"
	EnvPostgresUsername             = "POSTGRES_USERNAME"
	EnvPostgresPassword             = "POSTGRES_PASSWORD"
	EnvPostgresDatabase             = "POSTGRES_DATABASE"
	EnvPostgresPort                 = "POSTGRES_PORT"
	EnvAgendaMongoConnectionString  = "AGENDA_MONGO_CONNECTION_STRING"
	EnvFileBucketType               = "FILE_BUCKET_TYPE"
	EnvAwsS3Bucket                  = "AWS_S3_BUCKET"
	EnvPort                         = "PORT"
	EnvEmailUseMailcatcher          = "EMAIL_USE_MAILCATCHER"
	EnvEmailDebug                   = "EMAIL_DEBUG"
	EnvAutomationsLogRetentionHours = "AUTOMATIONS_LOG_RETENTION_HOURS"
	EnvLogLevel                     = "LOG_LEVEL"
)
