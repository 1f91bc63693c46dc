package stack

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdocdb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// ErrMissingNetwork is returned when a datastore is requested without a VPC.
var ErrMissingNetwork = errors.New("datastores require a network")

// DatabaseResources holds the relational datastore and, when enabled, the
// document datastore
type DatabaseResources struct {
	Postgres            awsrds.DatabaseInstance
	CredentialsSecret   awssecretsmanager.ISecret
	CredentialsArnParam awsssm.StringParameter
	Username            string
	DatabaseName        string
	Port                int
	Bootstrap           awscdk.CustomResource

	Document *DocumentResources
}

// DocumentResources holds the DocumentDB cluster
type DocumentResources struct {
	Cluster          awsdocdb.DatabaseCluster
	PasswordSecret   awssecretsmanager.ISecret
	Username         string
	ConnectionString *string
}

// createDatabaseResources creates Postgres with a rotated credentials secret,
// plus DocumentDB when enabled
func createDatabaseResources(resources *Resources, networking *NetworkingResources, cfg config.Config) (*DatabaseResources, error) {
	if networking == nil || networking.Vpc == nil {
		return nil, ErrMissingNetwork
	}

	database := createPostgres(resources, networking, cfg.Postgres)

	if cfg.Postgres.Bootstrap.Enabled {
		database.Bootstrap = createPostgresBootstrap(resources, networking, database, cfg.Postgres.Bootstrap)
	}

	if cfg.DocumentDB.Enabled {
		database.Document = createDocumentDatabase(resources, networking, cfg.DocumentDB)
	}

	return database, nil
}

func createPostgres(resources *Resources, networking *NetworkingResources, cfg config.PostgresConfig) *DatabaseResources {
	template := fmt.Sprintf(`{"username":%s}`, strconv.Quote(cfg.Username))

	// The username is templated into the secret so dependents can read
	// structured fields; RDS adds host, port and dbname on attachment.
	credentialsSecret := awssecretsmanager.NewSecret(resources.Stack, resources.id("secret-postgres-credentials"), &awssecretsmanager.SecretProps{
		SecretName: jsii.String(resources.name("secret-postgres-credentials")),
		GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
			SecretStringTemplate: jsii.String(template),
			GenerateStringKey:    jsii.String(PasswordField),
			ExcludePunctuation:   jsii.Bool(true),
			IncludeSpace:         jsii.Bool(false),
		},
		RemovalPolicy: resources.RemovalPolicy(),
	})

	credentialsArnParam := awsssm.NewStringParameter(resources.Stack, resources.id("string-parameter-postgres-credentials-arn"), &awsssm.StringParameterProps{
		ParameterName: jsii.String(resources.name("string-parameter-postgres-credentials-arn")),
		StringValue:   credentialsSecret.SecretArn(),
		Description:   jsii.String("ARN of the Postgres credentials secret"),
	})

	instance := awsrds.NewDatabaseInstance(resources.Stack, resources.id("rds-postgres"), &awsrds.DatabaseInstanceProps{
		Engine: awsrds.DatabaseInstanceEngine_Postgres(&awsrds.PostgresInstanceEngineProps{
			Version: awsrds.PostgresEngineVersion_Of(jsii.String(cfg.EngineVersion), jsii.String(cfg.MajorVersion), nil),
		}),
		Vpc:                     networking.Vpc,
		InstanceType:            awsec2.NewInstanceType(jsii.String(cfg.InstanceType)),
		Credentials:             awsrds.Credentials_FromSecret(credentialsSecret, jsii.String(cfg.Username)),
		DatabaseName:            jsii.String(cfg.DatabaseName),
		Port:                    jsii.Number(cfg.Port),
		CloudwatchLogsExports:   jsii.Strings("postgresql"),
		CloudwatchLogsRetention: retentionDays(cfg.LogRetentionDays),
		RemovalPolicy:           resources.DataRemovalPolicy(),
	})

	// Rotation runs in the provider's rotation application, not here.
	instance.AddRotationSingleUser(&awsrds.RotationSingleUserOptions{
		AutomaticallyAfter: awscdk.Duration_Days(jsii.Number(cfg.RotationDays)),
	})

	return &DatabaseResources{
		Postgres:            instance,
		CredentialsSecret:   credentialsSecret,
		CredentialsArnParam: credentialsArnParam,
		Username:            cfg.Username,
		DatabaseName:        cfg.DatabaseName,
		Port:                cfg.Port,
	}
}

func createDocumentDatabase(resources *Resources, networking *NetworkingResources, cfg config.DocumentDBConfig) *DocumentResources {
	passwordSecret := awssecretsmanager.NewSecret(resources.Stack, resources.id("secret-mongo-password"), &awssecretsmanager.SecretProps{
		SecretName: jsii.String(resources.name("secret-mongo-password")),
		GenerateSecretString: &awssecretsmanager.SecretStringGenerator{
			ExcludePunctuation: jsii.Bool(true),
			IncludeSpace:       jsii.Bool(false),
		},
		RemovalPolicy: resources.RemovalPolicy(),
	})

	cluster := awsdocdb.NewDatabaseCluster(resources.Stack, resources.id("mongo-cluster"), &awsdocdb.DatabaseClusterProps{
		MasterUser: &awsdocdb.Login{
			Username: jsii.String(cfg.Username),
			Password: passwordSecret.SecretValue(),
		},
		InstanceType:  awsec2.NewInstanceType(jsii.String(cfg.InstanceType)),
		Instances:     jsii.Number(cfg.Instances),
		Vpc:           networking.Vpc,
		RemovalPolicy: resources.DataRemovalPolicy(),
	})

	// The connection string is the one place a secret value is resolved
	// into plain configuration: the application takes a single URI.
	connectionString := awscdk.Fn_Join(jsii.String(""), &[]*string{
		jsii.String("mongodb://" + cfg.Username + ":"),
		passwordSecret.SecretValue().UnsafeUnwrap(),
		jsii.String("@"),
		cluster.ClusterEndpoint().SocketAddress(),
	})

	return &DocumentResources{
		Cluster:          cluster,
		PasswordSecret:   passwordSecret,
		Username:         cfg.Username,
		ConnectionString: connectionString,
	}
}
