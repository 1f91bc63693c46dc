package stack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/jsii-runtime-go"
)

// createConfigurationStores publishes non-secret deployment values to
// Parameter Store under /<service>/, for operators and tooling.
func createConfigurationStores(resources *Resources, storage *StorageResources, database *DatabaseResources, compute *ComputeResources, edge *EdgeResources) {
	prefix := "/" + resources.Service + "/backend/"
	params := map[string]*string{
		prefix + "s3-bucket-name":                  jsii.String(storage.Name),
		prefix + "postgres-host":                   database.Postgres.DbInstanceEndpointAddress(),
		prefix + "postgres-database":               jsii.String(database.DatabaseName),
		prefix + "postgres-credentials-secret-arn": database.CredentialsSecret.SecretArn(),
		prefix + "ecs-cluster-name":                compute.Cluster.ClusterName(),
		prefix + "container-image":                 jsii.String(compute.ImageRef),
		prefix + "service-url":                     edge.URL,
	}
	if database.Document != nil {
		params[prefix+"documentdb-endpoint"] = database.Document.Cluster.ClusterEndpoint().SocketAddress()
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, paramName := range names {
		// Create a clean construct ID from the parameter name
		constructID := strings.ReplaceAll(strings.ReplaceAll(strings.TrimPrefix(paramName, prefix), "/", ""), "-", "")
		awsssm.NewStringParameter(resources.Stack, jsii.String(fmt.Sprintf("Param%s", constructID)), &awsssm.StringParameterProps{
			ParameterName: jsii.String(paramName),
			StringValue:   params[paramName],
			Description:   jsii.String(fmt.Sprintf("Configuration parameter for %s", paramName)),
			Tier:          awsssm.ParameterTier_STANDARD,
		})
	}
}
