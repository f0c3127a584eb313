package liveness

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// PodSource reads container state from Kubernetes pod phases. Agents that
// run as pods name their pod in Agent.Container.
type PodSource struct {
	client    kubernetes.Interface
	namespace string
}

// NewPodSource creates a PodSource over an existing client.
func NewPodSource(client kubernetes.Interface, namespace string) *PodSource {
	return &PodSource{client: client, namespace: namespace}
}

// NewPodSourceFromKubeconfig builds a client from kubeconfigPath. An
// empty path tries in-cluster config first, then the default kubeconfig.
func NewPodSourceFromKubeconfig(kubeconfigPath, namespace string) (*PodSource, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfigPath != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			rules := clientcmd.NewDefaultClientConfigLoadingRules()
			cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
				rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("building kube config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kube client: %w", err)
	}
	return NewPodSource(client, namespace), nil
}

// State maps the pod phase onto a container state. A missing pod is not
// an error.
func (p *PodSource) State(ctx context.Context, podName string) (ContainerState, error) {
	pod, err := p.client.CoreV1().Pods(p.namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return StateNotFound, nil
		}
		return StateUnknown, fmt.Errorf("getting pod %s/%s: %w", p.namespace, podName, err)
	}

	switch pod.Status.Phase {
	case corev1.PodRunning:
		return StateRunning, nil
	case corev1.PodSucceeded, corev1.PodFailed:
		return StateExited, nil
	case corev1.PodPending:
		// Scheduled but not yet up: treat like an agent that has not
		// launched.
		return StateNotFound, nil
	default:
		return StateOther, nil
	}
}
