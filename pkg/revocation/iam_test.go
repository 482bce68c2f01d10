package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

type fakeIAM struct {
	putFunc func(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

func (f fakeIAM) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	return f.putFunc(ctx, params, optFns...)
}

func TestIAMAttacherAttachRevokeAll(t *testing.T) {
	t.Parallel()

	var captured *iam.PutRolePolicyInput
	a := newIAMAttacher(fakeIAM{
		putFunc: func(_ context.Context, params *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
			captured = params
			return &iam.PutRolePolicyOutput{}, nil
		},
	}, "delegate-role", "revoke-all")

	cutoff := time.Date(2024, 6, 1, 12, 30, 0, 0, time.FixedZone("PST", -8*3600))
	if err := a.AttachRevokeAll(context.Background(), cutoff); err != nil {
		t.Fatalf("AttachRevokeAll returned error: %v", err)
	}

	if awsv2.ToString(captured.RoleName) != "delegate-role" {
		t.Fatalf("unexpected role name: %q", awsv2.ToString(captured.RoleName))
	}
	if awsv2.ToString(captured.PolicyName) != "revoke-all" {
		t.Fatalf("unexpected policy name: %q", awsv2.ToString(captured.PolicyName))
	}

	var doc policyDocument
	if err := json.Unmarshal([]byte(awsv2.ToString(captured.PolicyDocument)), &doc); err != nil {
		t.Fatalf("policy document is not valid JSON: %v", err)
	}
	if doc.Version != "2012-10-17" {
		t.Fatalf("unexpected policy version: %q", doc.Version)
	}
	if len(doc.Statement) != 1 {
		t.Fatalf("got %d statements, want 1", len(doc.Statement))
	}
	st := doc.Statement[0]
	if st.Effect != "Deny" || st.Action != "*" || st.Resource != "*" {
		t.Fatalf("unexpected statement: %+v", st)
	}
	// Cutoff must be serialized in UTC.
	if got := st.Condition.DateLessThan["aws:TokenIssueTime"]; got != "2024-06-01T20:30:00Z" {
		t.Fatalf("unexpected cutoff condition: %q", got)
	}
}

func TestIAMAttacherAttachRevokeAllError(t *testing.T) {
	t.Parallel()

	a := newIAMAttacher(fakeIAM{
		putFunc: func(context.Context, *iam.PutRolePolicyInput, ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
			return nil, errors.New("access denied")
		},
	}, "delegate-role", "revoke-all")

	if err := a.AttachRevokeAll(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
