// pkg/federation/broker.go
package federation

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
)

// Credentials are temporary delegated credentials. Never persisted;
// consumed immediately by the minter.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Broker exchanges a caller identity for temporary delegated credentials.
type Broker interface {
	Assume(ctx context.Context, identity auth.Identity) (Credentials, error)
}

type stsAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// STSBroker assumes a fixed delegating role on behalf of each identity.
type STSBroker struct {
	client   stsAPI
	roleArn  string
	duration int32
	now      func() time.Time
}

// NewSTSBroker builds a broker over an SDK STS client.
func NewSTSBroker(client *sts.Client, roleArn string, durationSeconds int32) *STSBroker {
	return newSTSBroker(client, roleArn, durationSeconds, time.Now)
}

func newSTSBroker(client stsAPI, roleArn string, durationSeconds int32, now func() time.Time) *STSBroker {
	return &STSBroker{client: client, roleArn: roleArn, duration: durationSeconds, now: now}
}

// Assume requests delegated credentials tagged with the caller identity.
// The session name is deterministic from username and current time for
// traceability; uniqueness is not load-bearing. No retries: a failure
// surfaces immediately and is safe for the caller to retry.
func (b *STSBroker) Assume(ctx context.Context, identity auth.Identity) (Credentials, error) {
	sessionName := fmt.Sprintf("%s-%d", sanitizeSessionName(identity.Username), b.now().Unix())

	out, err := b.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         awsv2.String(b.roleArn),
		RoleSessionName: awsv2.String(sessionName),
		DurationSeconds: awsv2.Int32(b.duration),
		Tags: []ststypes.Tag{
			{Key: awsv2.String("subject"), Value: awsv2.String(identity.Subject)},
			{Key: awsv2.String("username"), Value: awsv2.String(identity.Username)},
		},
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: assume %s: %s", ErrCredential, b.roleArn, err)
	}
	if out.Credentials == nil {
		return Credentials{}, fmt.Errorf("%w: assume %s returned empty credentials", ErrCredential, b.roleArn)
	}

	return Credentials{
		AccessKeyID:     awsv2.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: awsv2.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    awsv2.ToString(out.Credentials.SessionToken),
	}, nil
}

// sanitizeSessionName keeps the session name within the issuer's
// [\w+=,.@-] charset.
func sanitizeSessionName(s string) string {
	if s == "" {
		return "anonymous"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("+=,.@-_", r):
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
