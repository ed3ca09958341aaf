// Package config loads bridge settings from YAML or TOML files.
//
//	naming:
//	  first_lower: true
//	  underscore: true
//	  scope: member
//	type_metakey: true
//	log:
//	  level: debug
//	  development: true
//	bulk:
//	  - type: Clock
//	    rename: {Now: current_time}
//	    skip: [Reset]
//
// Bulk rules name catalog types: the host registers a Go type under that
// name and the rule exposes its exported methods and fields.
package config
