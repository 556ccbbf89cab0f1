package backup

func postgresCommand(binary string, params Params) command {
	c := params.Credentials
	return command{
		path: binary,
		args: []string{
			"--format=plain",
			"--clean",
			"--create",
			"--if-exists",
			"--no-password",
			"-h", c.Host,
			"-p", portArg(c),
			"-U", c.Username,
			"-d", params.Database,
		},
		env: []string{"PGPASSWORD=" + c.Secret},
	}
}
