package toml

import (
	"fmt"
	"strings"

	"gopkg.in/amz.v3/aws"
	"gopkg.in/amz.v3/s3"
)

// fetchS3 downloads s3://bucket/key. Credentials come from the environment
// or from the -K and -S flags.
func fetchS3(location string, args map[string]interface{}) ([]byte, error) {
	regionName, _ := args["-r"].(string)
	region, present := aws.Regions[regionName]
	if endpoint, ok := args["--aws_endpoint_url"].(string); ok && endpoint != "" {
		region = aws.Region{
			Name:       "User defined",
			S3Endpoint: endpoint,
		}
		present = true
	}
	if !present {
		return nil, fmt.Errorf("invalid AWS region: %s", regionName)
	}

	auth, err := aws.EnvAuth()
	if err != nil {
		key, _ := args["-K"].(string)
		secret, _ := args["-S"].(string)
		if key == "" || secret == "" {
			return nil, fmt.Errorf("AWS credentials not found: use -K and -S, or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
		}
		auth = aws.Auth{AccessKey: key, SecretKey: secret}
	}

	bucket, key, err := splitS3URL(location)
	if err != nil {
		return nil, err
	}

	b, err := s3.New(auth, region).Bucket(bucket)
	if err != nil {
		return nil, err
	}
	return b.Get(key)
}

func splitS3URL(location string) (string, string, error) {
	parts := strings.SplitN(strings.TrimPrefix(location, "s3://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", location)
	}
	return parts[0], parts[1], nil
}
