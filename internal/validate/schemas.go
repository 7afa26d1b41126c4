package validate

var (
	KeyExchange = MustCompile("key-exchange", `{
		"type": "object",
		"required": ["clientPublicKey"],
		"properties": {
			"clientPublicKey": {"type": ["string", "object"], "minLength": 1}
		}
	}`)

	Register = MustCompile("register", `{
		"type": "object",
		"required": ["phoneNumber", "name", "password"],
		"properties": {
			"phoneNumber": {"type": "string", "minLength": 1},
			"name": {"type": "string", "minLength": 1},
			"password": {"type": "string", "minLength": 1}
		}
	}`)

	LoginOTP = MustCompile("login-otp", `{
		"type": "object",
		"required": ["phoneNumber"],
		"properties": {
			"phoneNumber": {"type": "string", "minLength": 1}
		}
	}`)

	VerifyOTP = MustCompile("verify-otp", `{
		"type": "object",
		"required": ["phoneNumber", "otp"],
		"properties": {
			"phoneNumber": {"type": "string", "minLength": 1},
			"otp": {"type": "string", "minLength": 1}
		}
	}`)

	LoginPassword = MustCompile("login-password", `{
		"type": "object",
		"required": ["phoneNumber", "password"],
		"properties": {
			"phoneNumber": {"type": "string", "minLength": 1},
			"password": {"type": "string", "minLength": 1}
		}
	}`)

	AddData = MustCompile("add-data", `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"message": {"type": "string"}
		}
	}`)

	UpdateData = MustCompile("update-data", `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"message": {"type": "string"}
		}
	}`)
)
