package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/lukaszraczylo/ecrsync/pkg/constants"
)

const testRegistry = "000000000000.dkr.ecr.us-east-1.amazonaws.com"

func testReconciler(clientset kubernetes.Interface) *KubernetesSecretReconciler {
	return NewKubernetesSecretReconciler(clientset, testRegistry, "ecr-creds")
}

func credentialsFor(token string) string {
	return `{"auths":{"` + testRegistry + `":{"username":"AWS","password":"` + token + `"}}}`
}

// writeActions filters out the read-only verbs so tests can assert on the
// exact writes a reconciliation performed.
func writeActions(actions []clienttesting.Action) []clienttesting.Action {
	var writes []clienttesting.Action
	for _, action := range actions {
		switch action.GetVerb() {
		case "create", "update", "patch", "delete":
			writes = append(writes, action)
		}
	}
	return writes
}

func TestReconcile_CreatesSecretWhenMissing(t *testing.T) {
	clientset := fake.NewClientset()
	r := testReconciler(clientset)

	err := r.Reconcile(context.Background(), "team-a", "tok123")
	require.NoError(t, err)

	secret, err := clientset.CoreV1().Secrets("team-a").Get(context.Background(), "ecr-creds", metav1.GetOptions{})
	require.NoError(t, err)

	assert.Equal(t, corev1.SecretTypeDockerConfigJson, secret.Type)
	assert.Equal(t, constants.ControllerName, secret.Labels[constants.LabelManagedBy])
	assert.JSONEq(t, credentialsFor("tok123"), string(secret.Data[corev1.DockerConfigJsonKey]))

	writes := writeActions(clientset.Actions())
	require.Len(t, writes, 1)
	assert.Equal(t, "create", writes[0].GetVerb())
}

func TestReconcile_PatchesExistingSecret(t *testing.T) {
	existing := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "ecr-creds",
			Namespace: "team-a",
			Labels: map[string]string{
				"operator.example.com/owned": "true",
			},
			Annotations: map[string]string{
				"operator.example.com/revision": "42",
			},
		},
		Type: corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{
			corev1.DockerConfigJsonKey: []byte(credentialsFor("old-token")),
			"extra-key":                []byte("keep-me"),
		},
	}

	clientset := fake.NewClientset(existing)
	r := testReconciler(clientset)

	err := r.Reconcile(context.Background(), "team-a", "new-token")
	require.NoError(t, err)

	secret, err := clientset.CoreV1().Secrets("team-a").Get(context.Background(), "ecr-creds", metav1.GetOptions{})
	require.NoError(t, err)

	assert.JSONEq(t, credentialsFor("new-token"), string(secret.Data[corev1.DockerConfigJsonKey]))

	// Metadata and data applied by other tooling survives the patch.
	assert.Equal(t, "true", secret.Labels["operator.example.com/owned"])
	assert.Equal(t, "42", secret.Annotations["operator.example.com/revision"])
	assert.Equal(t, []byte("keep-me"), secret.Data["extra-key"])

	writes := writeActions(clientset.Actions())
	require.Len(t, writes, 1)
	assert.Equal(t, "patch", writes[0].GetVerb())
}

func TestReconcile_SecondRunPatches(t *testing.T) {
	clientset := fake.NewClientset()
	r := testReconciler(clientset)

	require.NoError(t, r.Reconcile(context.Background(), "team-a", "tok1"))
	require.NoError(t, r.Reconcile(context.Background(), "team-a", "tok2"))

	secret, err := clientset.CoreV1().Secrets("team-a").Get(context.Background(), "ecr-creds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, credentialsFor("tok2"), string(secret.Data[corev1.DockerConfigJsonKey]))

	writes := writeActions(clientset.Actions())
	require.Len(t, writes, 2)
	assert.Equal(t, "create", writes[0].GetVerb())
	assert.Equal(t, "patch", writes[1].GetVerb())
}

func TestReconcile_EmptyTokenWritesEmptyCredentials(t *testing.T) {
	clientset := fake.NewClientset()
	r := testReconciler(clientset)

	require.NoError(t, r.Reconcile(context.Background(), "team-a", ""))

	secret, err := clientset.CoreV1().Secrets("team-a").Get(context.Background(), "ecr-creds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"auths":{}}`, string(secret.Data[corev1.DockerConfigJsonKey]))
}

func TestReconcile_ListFailureMakesNoWrites(t *testing.T) {
	clientset := fake.NewClientset()
	clientset.PrependReactor("list", "secrets", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("api server unavailable")
	})
	r := testReconciler(clientset)

	err := r.Reconcile(context.Background(), "team-a", "tok")
	require.Error(t, err)
	assert.Empty(t, writeActions(clientset.Actions()))
}

func TestReconcile_CreateFailure(t *testing.T) {
	clientset := fake.NewClientset()
	clientset.PrependReactor("create", "secrets", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(corev1.Resource("secrets"), "ecr-creds", errors.New("rbac denied"))
	})
	r := testReconciler(clientset)

	err := r.Reconcile(context.Background(), "team-a", "tok")
	assert.Error(t, err)
}

func TestReconcile_PatchDoesNotFallBackToCreate(t *testing.T) {
	// The managed secret exists but carries no credentials key, so the
	// replace patch cannot apply. The error surfaces to the caller and the
	// next sweep gets another chance.
	existing := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "ecr-creds",
			Namespace: "team-a",
		},
		Type: corev1.SecretTypeOpaque,
	}
	clientset := fake.NewClientset(existing)
	r := testReconciler(clientset)

	err := r.Reconcile(context.Background(), "team-a", "tok")
	require.Error(t, err)

	for _, action := range writeActions(clientset.Actions()) {
		assert.Equal(t, "patch", action.GetVerb())
	}
}
