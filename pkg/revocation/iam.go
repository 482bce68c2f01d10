// pkg/revocation/iam.go
package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

type iamAPI interface {
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// IAMAttacher installs the revoke-all inline policy on the delegating role.
type IAMAttacher struct {
	client     iamAPI
	roleName   string
	policyName string
}

// NewIAMAttacher builds an attacher over an SDK IAM client.
func NewIAMAttacher(client *iam.Client, roleName, policyName string) *IAMAttacher {
	return newIAMAttacher(client, roleName, policyName)
}

func newIAMAttacher(client iamAPI, roleName, policyName string) *IAMAttacher {
	return &IAMAttacher{client: client, roleName: roleName, policyName: policyName}
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Action    string          `json:"Action"`
	Resource  string          `json:"Resource"`
	Condition policyCondition `json:"Condition"`
}

type policyCondition struct {
	DateLessThan map[string]string `json:"DateLessThan"`
}

// AttachRevokeAll replaces the role's inline deny policy so that any
// credential issued before cutoff is rejected regardless of its stated
// expiry. This is a role-wide cutover: every identity holding credentials
// under the role issued before cutoff loses them, not only the caller.
func (a *IAMAttacher) AttachRevokeAll(ctx context.Context, cutoff time.Time) error {
	doc, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Deny",
			Action:   "*",
			Resource: "*",
			Condition: policyCondition{
				DateLessThan: map[string]string{
					"aws:TokenIssueTime": cutoff.UTC().Format(time.RFC3339),
				},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal revoke policy: %w", err)
	}

	_, err = a.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       awsv2.String(a.roleName),
		PolicyName:     awsv2.String(a.policyName),
		PolicyDocument: awsv2.String(string(doc)),
	})
	if err != nil {
		return fmt.Errorf("put role policy %s/%s: %w", a.roleName, a.policyName, err)
	}
	return nil
}
