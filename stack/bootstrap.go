package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
	"ferdig-infra/pgbootstrap"
)

const bootstrapBuildCommand = "GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -tags lambda.norpc -o /asset-output/bootstrap ./cmd/pgbootstrap"

// createPostgresBootstrap creates the Lambda and custom resource that check
// the new instance from inside the VPC and ensure its extensions.
func createPostgresBootstrap(resources *Resources, networking *NetworkingResources, database *DatabaseResources, cfg config.BootstrapConfig) awscdk.CustomResource {
	function := awslambda.NewFunction(resources.Stack, resources.id("postgres-bootstrap-function"), &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code: awslambda.AssetCode_FromAsset(jsii.String(moduleRoot()), &awss3assets.AssetOptions{
			Exclude: jsii.Strings("cdk.out", ".git", "_examples", "**/*_test.go"),
			Bundling: &awscdk.BundlingOptions{
				Image:   awscdk.DockerImage_FromRegistry(jsii.String("golang:1.24")),
				Command: jsii.Strings("bash", "-c", bootstrapBuildCommand),
				Environment: &map[string]*string{
					"GOCACHE": jsii.String("/tmp/go-cache"),
					"GOPATH":  jsii.String("/tmp/go"),
				},
				User: jsii.String("root"),
			},
		}),
		Vpc:         networking.Vpc,
		Timeout:     awscdk.Duration_Minutes(jsii.Number(2)),
		Description: jsii.String("Checks Postgres connectivity and ensures extensions after deploy"),
	})
	function.ApplyRemovalPolicy(awscdk.RemovalPolicy_DESTROY)

	database.CredentialsSecret.GrantRead(function, nil)
	database.Postgres.Connections().AllowDefaultPortFrom(function, jsii.String("Allow Postgres bootstrap function"))

	extensions := cfg.Extensions
	if extensions == nil {
		extensions = []string{}
	}

	bootstrap := awscdk.NewCustomResource(resources.Stack, resources.id("postgres-bootstrap"), &awscdk.CustomResourceProps{
		ServiceToken: function.FunctionArn(),
		ResourceType: jsii.String("Custom::PostgresBootstrap"),
		Properties: &map[string]interface{}{
			pgbootstrap.PropSecretArn:    database.CredentialsSecret.SecretArn(),
			pgbootstrap.PropDatabaseName: database.DatabaseName,
			pgbootstrap.PropHost:         database.Postgres.DbInstanceEndpointAddress(),
			pgbootstrap.PropPort:         database.Postgres.DbInstanceEndpointPort(),
			pgbootstrap.PropExtensions:   jsii.Strings(extensions...),
		},
	})
	bootstrap.Node().AddDependency(database.Postgres)

	return bootstrap
}
