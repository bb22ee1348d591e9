package config

// ObjectMeta is a simplified Kubernetes-style metadata block shared by the
// YAML manifests this package loads (app config, logging config, cache
// config).
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty" jsonschema:"title=Name,description=Name of the resource"`
	Namespace   string            `yaml:"namespace,omitempty" jsonschema:"title=Namespace,description=Namespace for the resource"`
	Labels      map[string]string `yaml:"labels,omitempty" jsonschema:"title=Labels,description=Key-value pairs for organizing resources"`
	Annotations map[string]string `yaml:"annotations,omitempty" jsonschema:"title=Annotations,description=Additional metadata"`
}
