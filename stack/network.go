package stack

import (
	"errors"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// ErrInvalidZoneCount is returned when the VPC would span no availability zone.
var ErrInvalidZoneCount = errors.New("vpc needs at least one availability zone")

// NetworkingResources holds the VPC every zone-scoped resource attaches to
type NetworkingResources struct {
	Vpc awsec2.IVpc
}

// createNetworkingResources creates the VPC
func createNetworkingResources(resources *Resources, cfg config.NetworkConfig) (*NetworkingResources, error) {
	if cfg.MaxAzs < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidZoneCount, cfg.MaxAzs)
	}

	// Public subnets for the load balancer, private subnets with NAT egress
	// for the tasks and datastores.
	vpc := awsec2.NewVpc(resources.Stack, resources.id("fargate-vpc"), &awsec2.VpcProps{
		MaxAzs:      jsii.Number(cfg.MaxAzs),
		NatGateways: jsii.Number(cfg.NatGateways),
	})
	vpc.ApplyRemovalPolicy(resources.RemovalPolicy())

	return &NetworkingResources{
		Vpc: vpc,
	}, nil
}
