package notify

// Capability reports whether exact alarms may currently be scheduled. It is
// consulted on every Schedule call since the grant can change at runtime.
type Capability interface {
	CanScheduleExact() bool
}

// StaticCapability is a fixed grant.
type StaticCapability bool

func (c StaticCapability) CanScheduleExact() bool { return bool(c) }

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func() bool

func (f CapabilityFunc) CanScheduleExact() bool { return f() }
