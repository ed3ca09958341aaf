// Package dispatch lets override-capable Go methods defer to script code.
//
// A method that scripts may replace calls Call or Run at its top and
// passes its own body as the default:
//
//	func (s *Shape) Area() float64 {
//		v, _ := dispatch.Call(d, s, "Area", func() (float64, error) {
//			return s.W * s.H, nil
//		})
//		return v
//	}
//
// When the script assigned a function to the member on s's proxy, that
// function runs with the proxy as self and its result replaces the body.
// A nil default marks the method abstract: without a script function the
// call fails with an unimplemented override error.
//
// While the original member runs through its placeholder (for example a
// script override calling the value it replaced), the dispatcher runs the
// default so the call does not loop back into the script.
package dispatch
