// Package handlers implements admission checks for Domain resources.
//
// DomainValidator enforces the rules the CRD schema cannot express on its
// own: cluster names must be unique within a Domain, and spec.domainUID may
// not change once set, since the scale endpoint addresses Domains by it.
// Violations are reported as field errors in an Invalid status.
package handlers
