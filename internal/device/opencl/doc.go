// Package opencl binds a native OpenCL platform through cgo.
//
// The binding is compiled only with the opencl build tag and needs the
// OpenCL headers and ICD loader:
//
//	go build -tags opencl ./...
//
// Without the tag the package still provides a Driver whose Devices method
// reports fault.ErrNoPlatform, so runtimes fall through to the host driver.
package opencl

// DriverName is the registry name of the native driver.
const DriverName = "opencl"
