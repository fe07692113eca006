// Package gatewaytypes provides the core data types shared across the
// gateway's queueing, execution, retry, rate-limiting, and routing layers.
//
// This package has ZERO dependencies on other gateway packages to avoid
// circular imports; the queueing, execution, retry, rate-limiting and
// routing packages import their shared types from here.
package gatewaytypes
