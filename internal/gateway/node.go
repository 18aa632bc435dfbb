package gateway

const (
	MethodRegister      = "node.register"
	MethodInvokeRequest = "node.invoke.request"
	MethodInvokeResult  = "node.invoke.result"
	MethodAction        = "canvas.a2ui.action"
	MethodTouchUpdated  = "node.touch.updated"
)

func DefaultRegistration() NodeRegistration {
	return NodeRegistration{
		Role: "node",
		Caps: []string{"canvas", "touch"},
		Commands: []string{
			"canvas.present",
			"canvas.hide",
			"canvas.navigate",
			"canvas.eval",
			"canvas.snapshot",
			"canvas.a2ui.push",
			"canvas.a2ui.pushJSONL",
			"canvas.a2ui.reset",
			"canvas.touch.configure",
			"canvas.touch.zones",
		},
	}
}

func NewRegistration(name string, tolerance int) NodeRegistration {
	reg := DefaultRegistration()
	reg.Name = name
	reg.Touch = &TouchInfo{Tolerance: tolerance}
	return reg
}
