package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// ComputeResources holds the ECS cluster and the single task definition
type ComputeResources struct {
	Cluster   awsecs.ICluster
	TaskDef   awsecs.FargateTaskDefinition
	Container awsecs.ContainerDefinition
	LogGroup  awslogs.ILogGroup
	ImageRef  string
}

// createComputeResources creates the cluster, log group, task definition and container
func createComputeResources(resources *Resources, networking *NetworkingResources, storage *StorageResources, database *DatabaseResources, secrets *SecretResources, cfg config.ContainerConfig) *ComputeResources {
	cluster := awsecs.NewCluster(resources.Stack, resources.id("fargate-cluster"), &awsecs.ClusterProps{
		ClusterName: jsii.String(resources.name("fargate-cluster")),
		Vpc:         networking.Vpc,
	})

	logGroup := awslogs.NewLogGroup(resources.Stack, resources.id("fargate-log-group"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String("/ecs/" + resources.Service),
		Retention:     retentionDays(cfg.LogRetentionDays),
		RemovalPolicy: resources.RemovalPolicy(),
	})

	taskDef := awsecs.NewFargateTaskDefinition(resources.Stack, resources.id("fargate-task-definition"), &awsecs.FargateTaskDefinitionProps{
		Cpu:            jsii.Number(cfg.Cpu),
		MemoryLimitMiB: jsii.Number(cfg.MemoryMiB),
	})

	inputs := EnvironmentInputs{
		PostgresHost:     database.Postgres.DbInstanceEndpointAddress(),
		PostgresPort:     database.Postgres.DbInstanceEndpointPort(),
		PostgresUsername: database.Username,
		PostgresDatabase: database.DatabaseName,
		BucketName:       storage.Name,
		Container:        cfg,
	}
	if database.Document != nil {
		inputs.MongoConnectionString = database.Document.ConnectionString
	}
	environment := containerEnvironment(inputs)
	containerSecretMap := containerSecrets(secrets, database)

	image, imageRef := containerImage(resources, cfg)

	container := taskDef.AddContainer(resources.id("fargate-container"), &awsecs.ContainerDefinitionOptions{
		Image: image,
		PortMappings: &[]*awsecs.PortMapping{
			{
				ContainerPort: jsii.Number(cfg.Port),
				HostPort:      jsii.Number(cfg.Port),
				Protocol:      awsecs.Protocol_TCP,
			},
		},
		Environment: &environment,
		Secrets:     &containerSecretMap,
		StopTimeout: awscdk.Duration_Seconds(jsii.Number(ContainerStopTimeoutSeconds)),
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			StreamPrefix: jsii.String(resources.Service),
			LogGroup:     logGroup,
		}),
	})

	return &ComputeResources{
		Cluster:   cluster,
		TaskDef:   taskDef,
		Container: container,
		LogGroup:  logGroup,
		ImageRef:  imageRef,
	}
}

// containerImage pulls from the configured ECR repository when set,
// otherwise from the public registry.
func containerImage(resources *Resources, cfg config.ContainerConfig) (awsecs.ContainerImage, string) {
	if cfg.EcrRepository != "" {
		tag := cfg.Tag
		if tag == "" {
			tag = "latest"
		}
		repo := awsecr.Repository_FromRepositoryName(resources.Stack, resources.id("ecr-repository"), jsii.String(cfg.EcrRepository))
		return awsecs.ContainerImage_FromEcrRepository(repo, jsii.String(tag)), cfg.EcrRepository + ":" + tag
	}

	ref := imageReference(cfg)
	return awsecs.ContainerImage_FromRegistry(jsii.String(ref), nil), ref
}

// imageReference renders <namespace>/<name>[:<tag>]; no tag means the
// registry's latest.
func imageReference(cfg config.ContainerConfig) string {
	if cfg.Tag == "" {
		return cfg.Image
	}
	return cfg.Image + ":" + cfg.Tag
}
