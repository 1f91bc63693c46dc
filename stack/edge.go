package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecspatterns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// EdgeResources holds the public load balanced service and its DNS/TLS resources
type EdgeResources struct {
	Service     awsecspatterns.ApplicationLoadBalancedFargateService
	Zone        awsroute53.IHostedZone
	Certificate awscertificatemanager.ICertificate
	URL         *string
}

// createEdgeResources fronts the task with a public load balancer. With DNS
// enabled it terminates HTTPS using a DNS-validated certificate for the
// domain and redirects HTTP.
func createEdgeResources(resources *Resources, compute *ComputeResources, cfg config.EdgeConfig) *EdgeResources {
	props := &awsecspatterns.ApplicationLoadBalancedFargateServiceProps{
		Cluster:                compute.Cluster,
		TaskDefinition:         compute.TaskDef,
		ServiceName:            jsii.String(resources.name("fargate-service")),
		DesiredCount:           jsii.Number(cfg.DesiredCount),
		PublicLoadBalancer:     jsii.Bool(true),
		AssignPublicIp:         jsii.Bool(cfg.AssignPublicIP),
		HealthCheckGracePeriod: awscdk.Duration_Seconds(jsii.Number(cfg.GracePeriodSeconds)),
		DeploymentController: &awsecs.DeploymentController{
			Type: awsecs.DeploymentControllerType_ECS,
		},
		Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTP,
	}

	edge := &EdgeResources{}
	if cfg.DNS.Enabled {
		edge.Zone = awsroute53.NewHostedZone(resources.Stack, resources.id("hosted-zone"), &awsroute53.HostedZoneProps{
			ZoneName: jsii.String(cfg.DNS.ZoneName),
		})
		edge.Certificate = awscertificatemanager.NewCertificate(resources.Stack, resources.id("domain-certificate"), &awscertificatemanager.CertificateProps{
			DomainName: jsii.String(cfg.DNS.DomainName),
			Validation: awscertificatemanager.CertificateValidation_FromDns(edge.Zone),
		})

		props.Protocol = awselasticloadbalancingv2.ApplicationProtocol_HTTPS
		props.DomainZone = edge.Zone
		props.DomainName = jsii.String(cfg.DNS.DomainName)
		props.Certificate = edge.Certificate
		props.RedirectHTTP = jsii.Bool(true)
	}

	edge.Service = awsecspatterns.NewApplicationLoadBalancedFargateService(resources.Stack, resources.id("fargate-service"), props)

	edge.Service.TargetGroup().ConfigureHealthCheck(&awselasticloadbalancingv2.HealthCheck{
		Path:                    jsii.String(cfg.HealthCheck.Path),
		Timeout:                 awscdk.Duration_Seconds(jsii.Number(cfg.HealthCheck.TimeoutSeconds)),
		Interval:                awscdk.Duration_Seconds(jsii.Number(cfg.HealthCheck.IntervalSeconds)),
		HealthyThresholdCount:   jsii.Number(HealthyThresholdCount),
		UnhealthyThresholdCount: jsii.Number(UnhealthyThresholdCount),
	})

	if cfg.DNS.Enabled {
		edge.URL = jsii.String("https://" + cfg.DNS.DomainName)
	} else {
		edge.URL = awscdk.Fn_Join(jsii.String(""), &[]*string{
			jsii.String("http://"),
			edge.Service.LoadBalancer().LoadBalancerDnsName(),
		})
	}

	return edge
}

// grantServiceAccess wires the least-privilege access the running task needs:
// read/write on the file bucket and network ingress to each datastore.
func grantServiceAccess(resources *Resources, storage *StorageResources, database *DatabaseResources, compute *ComputeResources, edge *EdgeResources) {
	storage.Bucket.GrantReadWrite(compute.TaskDef.TaskRole(), nil)

	service := edge.Service.Service()
	database.Postgres.Connections().AllowFrom(service, awsec2.Port_Tcp(jsii.Number(database.Port)), jsii.String(fmt.Sprintf("Allow %s service to reach Postgres", resources.Service)))

	if database.Document != nil {
		database.Document.Cluster.Connections().AllowDefaultPortFrom(service, jsii.String(fmt.Sprintf("Allow %s service to reach DocumentDB", resources.Service)))
	}
}
