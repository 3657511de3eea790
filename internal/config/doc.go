// Package config defines the format-agnostic release manifest model and the
// interfaces for loading it. The concrete HCL implementation lives in the
// `hclcfg` package; everything downstream of loading consumes only the types
// defined here.
package config
