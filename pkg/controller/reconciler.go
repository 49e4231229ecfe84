// Package controller implements the ecrsync reconciliation logic.
package controller

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/lukaszraczylo/ecrsync/pkg/constants"
	"github.com/lukaszraczylo/ecrsync/pkg/dockerconfig"
)

// jsonPatchOp is a single RFC 6902 patch operation.
type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// KubernetesSecretReconciler implements SecretReconciler using the Kubernetes API.
type KubernetesSecretReconciler struct {
	clientset  kubernetes.Interface
	registry   string
	secretName string
}

// NewKubernetesSecretReconciler creates a new KubernetesSecretReconciler.
func NewKubernetesSecretReconciler(clientset kubernetes.Interface, registry, secretName string) *KubernetesSecretReconciler {
	return &KubernetesSecretReconciler{
		clientset:  clientset,
		registry:   registry,
		secretName: secretName,
	}
}

// Reconcile converges the pull secret in a single namespace with exactly one
// write: a patch when the managed secret already exists, a create when it
// does not.
func (r *KubernetesSecretReconciler) Reconcile(ctx context.Context, namespace, token string) error {
	logger := log.FromContext(ctx).WithValues("namespace", namespace, "secret", r.secretName)

	secretList, err := r.clientset.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing secrets in %s: %w", namespace, err)
	}

	creds := dockerconfig.Build(r.registry, constants.RegistryUsername, token)

	if secretExists(secretList.Items, r.secretName) {
		if err := r.patchSecret(ctx, namespace, creds); err != nil {
			return fmt.Errorf("patching secret %s/%s: %w", namespace, r.secretName, err)
		}
		logger.V(1).Info("patched pull secret")
		return nil
	}

	if err := r.createSecret(ctx, namespace, creds); err != nil {
		return fmt.Errorf("creating secret %s/%s: %w", namespace, r.secretName, err)
	}
	logger.V(1).Info("created pull secret")

	return nil
}

// secretExists reports whether a secret with the given name is present in items.
func secretExists(items []corev1.Secret, name string) bool {
	for _, s := range items {
		if s.Name == name {
			return true
		}
	}
	return false
}

// patchSecret replaces only the credentials key, leaving metadata and any
// other data keys untouched.
func (r *KubernetesSecretReconciler) patchSecret(ctx context.Context, namespace string, creds dockerconfig.Config) error {
	encoded, err := creds.Encode()
	if err != nil {
		return err
	}

	patch, err := json.Marshal([]jsonPatchOp{{
		Op:    "replace",
		Path:  "/data/" + corev1.DockerConfigJsonKey,
		Value: encoded,
	}})
	if err != nil {
		return err
	}

	_, err = r.clientset.CoreV1().Secrets(namespace).Patch(ctx, r.secretName, types.JSONPatchType, patch, metav1.PatchOptions{})
	return err
}

// createSecret creates the full pull secret carrying the managed-by label.
func (r *KubernetesSecretReconciler) createSecret(ctx context.Context, namespace string, creds dockerconfig.Config) error {
	payload, err := creds.JSON()
	if err != nil {
		return err
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      r.secretName,
			Namespace: namespace,
			Labels: map[string]string{
				constants.LabelManagedBy: constants.ControllerName,
			},
		},
		Type: corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{
			corev1.DockerConfigJsonKey: payload,
		},
	}

	_, err = r.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	return err
}
