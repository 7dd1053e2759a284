// Package bridge converts values between the host engine and the
// guest, in both directions, and keeps the function wrapper cache
// that makes conversion identity-stable.
//
// Guest functions surface to the host as callable wrappers. The cache
// guarantees one wrapper per function address, so marshalling the same
// funcref twice yields the same host object, and passing a wrapper
// back to the guest recovers the original address instead of minting
// a new host function.
package bridge
