// Package cluster holds the connection to a Kubernetes cluster and the
// pieces that depend on it: test namespaces, namespace naming, and the
// strategies for reaching in-cluster services from test code.
//
// A Cluster wraps a client-go clientset plus its rest.Config and an
// AccessStrategy. Most tests obtain one via Discover, which walks the
// standard kubeconfig loading rules and falls back to in-cluster
// configuration.
package cluster
