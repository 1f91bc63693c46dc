package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/jsii-runtime-go"

	"ferdig-infra/config"
)

// StorageResources holds the application file bucket
type StorageResources struct {
	Bucket awss3.IBucket
	Name   string
}

// createStorageResources creates the private file bucket. Bucket names are
// global, so the default name carries the account and region.
func createStorageResources(resources *Resources, cfg config.StorageConfig) *StorageResources {
	bucketName := cfg.BucketName
	if bucketName == "" {
		bucketName = fmt.Sprintf("%s-files-%s-%s", resources.Service, resources.Account, resources.Region)
	}

	removalPolicy := resources.RemovalPolicy()
	bucket := awss3.NewBucket(resources.Stack, resources.id("files"), &awss3.BucketProps{
		BucketName:        jsii.String(bucketName),
		AccessControl:     awss3.BucketAccessControl_PRIVATE,
		PublicReadAccess:  jsii.Bool(false),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		EnforceSSL:        jsii.Bool(true),
		RemovalPolicy:     removalPolicy,
		AutoDeleteObjects: jsii.Bool(removalPolicy == awscdk.RemovalPolicy_DESTROY),
	})

	return &StorageResources{
		Bucket: bucket,
		Name:   bucketName,
	}
}
