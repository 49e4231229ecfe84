// Package controller implements the ecrsync reconciliation logic.
package controller

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// KubernetesNamespaceLister implements NamespaceLister using the Kubernetes API.
type KubernetesNamespaceLister struct {
	clientset kubernetes.Interface
	selector  string
}

// NewKubernetesNamespaceLister creates a new KubernetesNamespaceLister that
// lists namespaces carrying the opt-in label.
func NewKubernetesNamespaceLister(clientset kubernetes.Interface, selector string) *KubernetesNamespaceLister {
	return &KubernetesNamespaceLister{
		clientset: clientset,
		selector:  selector,
	}
}

// ListNamespaces returns the names of all namespaces matching the selector.
// An empty result is not an error: a cluster with no opted-in namespaces is
// a valid state.
func (k *KubernetesNamespaceLister) ListNamespaces(ctx context.Context) ([]string, error) {
	namespaceList, err := k.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{
		LabelSelector: k.selector,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(namespaceList.Items))
	for _, ns := range namespaceList.Items {
		names = append(names, ns.Name)
	}

	return names, nil
}
