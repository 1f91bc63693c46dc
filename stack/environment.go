package stack

import (
	"strconv"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// EnvironmentInputs are the values the plain container environment is built from.
type EnvironmentInputs struct {
	PostgresHost     *string
	PostgresPort     *string
	PostgresUsername string
	PostgresDatabase string
	// MongoConnectionString is nil when DocumentDB is disabled.
	MongoConnectionString *string
	BucketName            string
	Container             config.ContainerConfig
}

// containerEnvironment returns the non-secret part of the environment contract.
func containerEnvironment(in EnvironmentInputs) map[string]*string {
	env := map[string]*string{
		EnvPostgresHost:     in.PostgresHost,
		EnvPostgresUsername: jsii.String(in.PostgresUsername),
		EnvPostgresDatabase: jsii.String(in.PostgresDatabase),

		EnvFileBucketType: jsii.String(FileBucketType),
		EnvAwsS3Bucket:    jsii.String(in.BucketName),

		EnvPort: jsii.String(strconv.Itoa(in.Container.Port)),

		EnvEmailUseMailcatcher: jsii.String(envBool(in.Container.EmailUseMailcatcher)),
		EnvEmailDebug:          jsii.String(envBool(in.Container.EmailDebug)),

		EnvAutomationsLogRetentionHours: jsii.String(strconv.Itoa(in.Container.AutomationsLogRetentionHours)),
	}

	if in.PostgresPort != nil {
		env[EnvPostgresPort] = in.PostgresPort
	}
	if in.MongoConnectionString != nil {
		env[EnvAgendaMongoConnectionString] = in.MongoConnectionString
	}
	if in.Container.LogLevel != "" {
		env[EnvLogLevel] = jsii.String(in.Container.LogLevel)
	}
	return env
}

// containerSecrets returns the values injected by reference when the task starts.
func containerSecrets(secrets *SecretResources, database *DatabaseResources) map[string]awsecs.Secret {
	return map[string]awsecs.Secret{
		EnvAuthJwtSecret:    awsecs.Secret_FromSecretsManager(secrets.AuthJwt, jsii.String(SigningSecretField)),
		EnvSessionSecret:    awsecs.Secret_FromSecretsManager(secrets.Session, jsii.String(SigningSecretField)),
		EnvPostgresPassword: awsecs.Secret_FromSecretsManager(database.CredentialsSecret, jsii.String(PasswordField)),
	}
}

// envBool renders booleans the way the application parses them: TRUE or FALSE.
func envBool(b bool) string {
	return strings.ToUpper(strconv.FormatBool(b))
}
