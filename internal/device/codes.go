package device

import (
	"fmt"

	"spark/internal/fault"
)

// Status codes shared by every driver. The values and names follow the
// OpenCL error table so native and host devices report failures the same way.
const (
	Success                    int32 = 0
	DeviceNotFound             int32 = -1
	DeviceNotAvailable         int32 = -2
	CompilerNotAvailable       int32 = -3
	MemObjectAllocationFailure int32 = -4
	OutOfResources             int32 = -5
	OutOfHostMemory            int32 = -6
	BuildProgramFailure        int32 = -11
	InvalidValue               int32 = -30
	InvalidDeviceType          int32 = -31
	InvalidPlatform            int32 = -32
	InvalidDevice              int32 = -33
	InvalidContext             int32 = -34
	InvalidCommandQueue        int32 = -36
	InvalidMemObject           int32 = -38
	InvalidBinary              int32 = -42
	InvalidBuildOptions        int32 = -43
	InvalidProgram             int32 = -44
	InvalidProgramExecutable   int32 = -45
	InvalidKernelName          int32 = -46
	InvalidKernelDefinition    int32 = -47
	InvalidKernel              int32 = -48
	InvalidArgIndex            int32 = -49
	InvalidArgValue            int32 = -50
	InvalidArgSize             int32 = -51
	InvalidKernelArgs          int32 = -52
	InvalidWorkDimension       int32 = -53
	InvalidWorkGroupSize       int32 = -54
	InvalidWorkItemSize        int32 = -55
	InvalidGlobalOffset        int32 = -56
	InvalidEventWaitList       int32 = -57
	InvalidEvent               int32 = -58
	InvalidOperation           int32 = -59
	InvalidBufferSize          int32 = -61
	InvalidGlobalWorkSize      int32 = -63
	PlatformNotFoundKHR        int32 = -1001
)

var codeNames = map[int32]string{
	Success:                    "CL_SUCCESS",
	DeviceNotFound:             "CL_DEVICE_NOT_FOUND",
	DeviceNotAvailable:         "CL_DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:       "CL_COMPILER_NOT_AVAILABLE",
	MemObjectAllocationFailure: "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:             "CL_OUT_OF_RESOURCES",
	OutOfHostMemory:            "CL_OUT_OF_HOST_MEMORY",
	-7:                         "CL_PROFILING_INFO_NOT_AVAILABLE",
	-8:                         "CL_MEM_COPY_OVERLAP",
	-9:                         "CL_IMAGE_FORMAT_MISMATCH",
	-10:                        "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	BuildProgramFailure:        "CL_BUILD_PROGRAM_FAILURE",
	-12:                        "CL_MAP_FAILURE",
	-13:                        "CL_MISALIGNED_SUB_BUFFER_OFFSET",
	-14:                        "CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST",
	-15:                        "CL_COMPILE_PROGRAM_FAILURE",
	-16:                        "CL_LINKER_NOT_AVAILABLE",
	-17:                        "CL_LINK_PROGRAM_FAILURE",
	-18:                        "CL_DEVICE_PARTITION_FAILED",
	-19:                        "CL_KERNEL_ARG_INFO_NOT_AVAILABLE",
	InvalidValue:               "CL_INVALID_VALUE",
	InvalidDeviceType:          "CL_INVALID_DEVICE_TYPE",
	InvalidPlatform:            "CL_INVALID_PLATFORM",
	InvalidDevice:              "CL_INVALID_DEVICE",
	InvalidContext:             "CL_INVALID_CONTEXT",
	-35:                        "CL_INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:        "CL_INVALID_COMMAND_QUEUE",
	-37:                        "CL_INVALID_HOST_PTR",
	InvalidMemObject:           "CL_INVALID_MEM_OBJECT",
	-39:                        "CL_INVALID_IMAGE_FORMAT_DESCRIPTOR",
	-40:                        "CL_INVALID_IMAGE_SIZE",
	-41:                        "CL_INVALID_SAMPLER",
	InvalidBinary:              "CL_INVALID_BINARY",
	InvalidBuildOptions:        "CL_INVALID_BUILD_OPTIONS",
	InvalidProgram:             "CL_INVALID_PROGRAM",
	InvalidProgramExecutable:   "CL_INVALID_PROGRAM_EXECUTABLE",
	InvalidKernelName:          "CL_INVALID_KERNEL_NAME",
	InvalidKernelDefinition:    "CL_INVALID_KERNEL_DEFINITION",
	InvalidKernel:              "CL_INVALID_KERNEL",
	InvalidArgIndex:            "CL_INVALID_ARG_INDEX",
	InvalidArgValue:            "CL_INVALID_ARG_VALUE",
	InvalidArgSize:             "CL_INVALID_ARG_SIZE",
	InvalidKernelArgs:          "CL_INVALID_KERNEL_ARGS",
	InvalidWorkDimension:       "CL_INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:       "CL_INVALID_WORK_GROUP_SIZE",
	InvalidWorkItemSize:        "CL_INVALID_WORK_ITEM_SIZE",
	InvalidGlobalOffset:        "CL_INVALID_GLOBAL_OFFSET",
	InvalidEventWaitList:       "CL_INVALID_EVENT_WAIT_LIST",
	InvalidEvent:               "CL_INVALID_EVENT",
	InvalidOperation:           "CL_INVALID_OPERATION",
	-60:                        "CL_INVALID_GL_OBJECT",
	InvalidBufferSize:          "CL_INVALID_BUFFER_SIZE",
	-62:                        "CL_INVALID_MIP_LEVEL",
	InvalidGlobalWorkSize:      "CL_INVALID_GLOBAL_WORK_SIZE",
	-64:                        "CL_INVALID_PROPERTY",
	-65:                        "CL_INVALID_IMAGE_DESCRIPTOR",
	-66:                        "CL_INVALID_COMPILER_OPTIONS",
	-67:                        "CL_INVALID_LINKER_OPTIONS",
	-68:                        "CL_INVALID_DEVICE_PARTITION_COUNT",
	PlatformNotFoundKHR:        "CL_PLATFORM_NOT_FOUND_KHR",
}

// CodeName returns the symbolic name of a status code.
func CodeName(code int32) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("CL_UNKNOWN_ERROR_%d", code)
}

// Fail builds the device error for a failed native call.
func Fail(op string, code int32) *fault.Error {
	return fault.Device(op, code, CodeName(code))
}
