package backup

func mysqlCommand(binary string, params Params) command {
	c := params.Credentials
	return command{
		path: binary,
		args: []string{
			"--single-transaction",
			"--routines",
			"--triggers",
			"--events",
			"-h", c.Host,
			"-P", portArg(c),
			"-u", c.Username,
			params.Database,
		},
		// mysqldump reads the password from MYSQL_PWD, keeping it out of the process list
		env: []string{"MYSQL_PWD=" + c.Secret},
	}
}
