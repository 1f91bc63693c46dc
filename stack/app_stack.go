// Package stack provides the CDK stack for the ferdig backend infrastructure.
package stack

import (
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// FerdigStackProps defines the properties for the ferdig stack.
type FerdigStackProps struct {
	awscdk.StackProps
	Config config.Config
}

// FerdigStack is the CDK stack holding every ferdig resource. The embedded
// records are exposed for callers and tests.
type FerdigStack struct {
	awscdk.Stack
	Network  *NetworkingResources
	Storage  *StorageResources
	Secrets  *SecretResources
	Database *DatabaseResources
	Compute  *ComputeResources
	Edge     *EdgeResources
}

// NewFerdigStack creates the stack. Each step receives the records of the
// steps it depends on; any error means nothing may be synthesized.
func NewFerdigStack(scope constructs.Construct, id string, props *FerdigStackProps) (*FerdigStack, error) {
	if props == nil {
		return nil, fmt.Errorf("%w: stack props are required", config.ErrInvalid)
	}
	cfg := props.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(scope, &id, &props.StackProps)
	awscdk.Tags_Of(stack).Add(jsii.String(DefaultResourceTagKey), jsii.String(cfg.Service), nil)

	resources := newResources(stack, cfg)
	logger := log.WithFields(log.Fields{"stack": id, "service": cfg.Service})

	// Create resources in logical order
	networking, err := createNetworkingResources(resources, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	storage := createStorageResources(resources, cfg.Storage)
	secrets := createSecretResources(resources, cfg.Secrets)

	database, err := createDatabaseResources(resources, networking, cfg)
	if err != nil {
		return nil, fmt.Errorf("datastores: %w", err)
	}

	compute := createComputeResources(resources, networking, storage, database, secrets, cfg.Container)
	edge := createEdgeResources(resources, compute, cfg.Edge)
	grantServiceAccess(resources, storage, database, compute, edge)

	createConfigurationStores(resources, storage, database, compute, edge)
	createOutputs(resources, storage, database, secrets, edge)

	logger.WithFields(log.Fields{
		"azs":        cfg.Network.MaxAzs,
		"image":      compute.ImageRef,
		"documentdb": database.Document != nil,
		"dns":        cfg.Edge.DNS.Enabled,
		"bootstrap":  database.Bootstrap != nil,
	}).Info("stack defined")

	return &FerdigStack{
		Stack:    stack,
		Network:  networking,
		Storage:  storage,
		Secrets:  secrets,
		Database: database,
		Compute:  compute,
		Edge:     edge,
	}, nil
}

type stackOutput struct {
	id          string
	value       *string
	description string
}

// createOutputs creates the CloudFormation outputs
func createOutputs(resources *Resources, storage *StorageResources, database *DatabaseResources, secrets *SecretResources, edge *EdgeResources) {
	outputs := []stackOutput{
		{"ServiceURL", edge.URL, "Public URL of the service"},
		{"LoadBalancerDNS", edge.Service.LoadBalancer().LoadBalancerDnsName(), "DNS name of the public load balancer"},
		{"BucketName", jsii.String(storage.Name), "S3 bucket for application files"},
		{"PostgresEndpoint", database.Postgres.DbInstanceEndpointAddress(), "Postgres instance endpoint address"},
		{"PostgresCredentialsSecretARN", database.CredentialsSecret.SecretArn(), "Postgres credentials secret ARN"},
		{"AuthJwtSecretARN", secrets.AuthJwt.SecretArn(), "JWT signing secret ARN"},
		{"SessionSecretARN", secrets.Session.SecretArn(), "Session signing secret ARN"},
	}
	if edge.Zone != nil {
		outputs = append(outputs, stackOutput{"HostedZoneNameServers", awscdk.Fn_Join(jsii.String(","), edge.Zone.HostedZoneNameServers()), "Name servers to delegate the domain to"})
	}

	for _, o := range outputs {
		awscdk.NewCfnOutput(resources.Stack, jsii.String(o.id), &awscdk.CfnOutputProps{
			Value:       o.value,
			Description: jsii.String(o.description),
			ExportName:  jsii.String(fmt.Sprintf("%s-%s", resources.Service, o.id)),
		})
	}
}
