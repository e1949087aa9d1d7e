package oracli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	goOra "github.com/sijms/go-ora/v2"
)

// Connector interface that define a connection
type Connector interface {
	ConnectionSource
	Select(stmt string, params []*Param) Result
	Exec(stmt string, params []*Param) Result
	Close()
	Ping() error
	ReConnect() error
}

var _ Connector = (*Connection)(nil)

// ConnectionConfiguration represents the minimum configuration required for the connection pool
type ConnectionConfiguration struct {
	ConfigurationSet      bool
	MaxOpenConnections    int
	MaxIdleConnections    int
	ContextTimeout        int
	MaxConnectionLifeTime time.Duration
	MaxIdleConnectionTime time.Duration
	FetchBatch            int
}

// Connection represents an object connection for Oracle
type Connection struct {
	Name          string
	ConStr        string
	Configuration *ConnectionConfiguration
	log           *zerolog.Logger
	conn          *sql.DB
}

// Param used to Select / Exec a statement, replaced by position
type Param struct {
	Name  string
	Value any
	Size  int
}

// -----------------------------------------------------
// Public Methods
// -----------------------------------------------------

// NewConnectionWithParams create a new connection using every parameter independently
// Parameters:
// @server: Server Address - name or ip
// @port: Connection port
// @user: User name
// @password: password
// @service: Service Name for Oracle connection if SID is needed use @options
// @options: specified some options like TRACE, SID or conStr etc.
// @configuration: Specifies how connections parameters must be handled in ConnectionConfiguration
// @name: Connection name
// @log: *zerolog.Logger used by the connection and every statement it prepares
func NewConnectionWithParams(server string, port int, user, password, service string,
	options map[string]string,
	configuration *ConnectionConfiguration,
	name string,
	log *zerolog.Logger,
) (*Connection, error) {
	conStr := goOra.BuildUrl(server, port, service, user, password, options)
	log.Info().Msgf(" +++ Connection to [%v:%v/%v] as [%v]", server, port, service, user)
	return NewConnection(conStr, name, configuration, log)
}

// NewConnection create and open a goOra Connection based on buildUrl
// Parameters:
// @constr: Connection String built with buildUrl
// @name: Connection name
// @configuration: Specifies how connection must be handled with ConnectionConfiguration
// @log: *zerolog.Logger
func NewConnection(constr string, name string, configuration *ConnectionConfiguration, log *zerolog.Logger) (*Connection, error) {
	log.Info().Msgf("+++ New connection pool [%v]", name)
	if constr == "" {
		log.Error().Msg("empty connection string")
		return nil, EmptyConStrErr
	}

	// createConnection
	conn, err := createConnection(constr, configuration, log)
	if err != nil {
		log.Err(err).Msg("connection pool could not be opened")
		return nil, err
	}

	log.Info().Msgf("+++ Connection pool [%v] created", name)
	return &Connection{
		Name:          name,
		conn:          conn,
		ConStr:        constr,
		Configuration: configuration,
		log:           log,
	}, nil
}

// NewParam creates and fill a new Input Parameter
// Parameters:
// @name: Parameter name - only for control
// @value: value to be passed
func (c *Connection) NewParam(name string, value any) *Param {
	return &Param{
		Name:  name,
		Value: value,
		Size:  100,
	}
}

// Acquire checks a session out of the database/sql pool
func (c *Connection) Acquire(ctx context.Context) (Session, error) {
	conn, err := c.conn.Conn(ctx)
	if err != nil {
		return nil, CantCreateConnErr(err.Error())
	}
	return newOraSession(conn, c.log), nil
}

// Release closes what the session still holds and returns it to the pool
func (c *Connection) Release(s Session) {
	sess, ok := s.(*oraSession)
	if !ok {
		c.log.Error().Msgf("release of foreign session %T", s)
		return
	}
	if err := sess.close(); err != nil {
		c.log.Err(err).Msg("Error releasing session")
	}
}

// Select takes a statement, describes its select list and returns every row
// as a Record
// Parameters:
// @stmt: Statement to execute
// @params: []*Params - list of parameters to be replaced by position in the @stmt
func (c *Connection) Select(stmt string, params []*Param) Result {
	c.log.Info().Msgf("+++ Hit Select for  [%v]", stmt)
	c.log.Info().Msgf("+++ number of parameters [%v]", len(params))

	ctx, cancel := c.context()
	defer cancel()

	sess, err := c.Acquire(ctx)
	if err != nil {
		c.log.Err(err).Msg("Error acquiring session")
		return Result{Error: err}
	}
	defer c.Release(sess)

	records, err := SelectRecords(ctx, sess, stmt, params, c.batch())
	if err != nil {
		c.log.Err(err).Msgf("Error executing the query [%v]", stmt)
		return Result{Error: err}
	}

	container := newContainer()
	for _, r := range records {
		container.addToRows(r)
	}
	return Result{
		Container:       container,
		RecordsAffected: int64(len(records)),
		HasData:         len(records) > 0,
	}
}

// SelectRecords prepares stmt on sess, describes it and fetches every row as
// a Record
func SelectRecords(ctx context.Context, sess Session, stmt string, params []*Param, batch int) ([]Record, error) {
	members, values, err := buildParamsList(params)
	if err != nil {
		return nil, err
	}
	st, err := Prepare[[]any](ctx, sess, stmt, NewValuesProvider(members...))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = st.Close()
	}()

	cols, err := st.Describe(ctx)
	if err != nil {
		return nil, err
	}
	q, err := NewQuery[[]any, Record](ctx, st, NewRecordResults(cols), batch)
	if err != nil {
		return nil, err
	}
	return q.FetchList(ctx, values)
}

// ExecuteDDL execute a DDL command against the current connection
// Parameters:
// @stmt Statement to execute
func (c *Connection) ExecuteDDL(stmt string) Result {
	c.log.Info().Msgf("+++ Hit ExecuteDDL for  [%v]", stmt)
	return c.Exec(stmt, nil)
}

// Exec used to execute non-returnable DML as insert, update, delete
// or a procedure without return values
// Parameters:
// @stmt Statement to execute
// @params List of parameters to replace in @statement
func (c *Connection) Exec(stmt string, params []*Param) Result {
	c.log.Info().Msgf("+++ Hit Exec for  [%v]", stmt)
	c.log.Info().Msgf("+++ number of parameters [%v]", len(params))

	ctx, cancel := c.context()
	defer cancel()

	sess, err := c.Acquire(ctx)
	if err != nil {
		return Result{Error: err}
	}
	defer c.Release(sess)

	members, values, err := buildParamsList(params)
	if err != nil {
		c.log.Err(err).Msg("\t ... (Exec) parameter error")
		return Result{Error: err}
	}
	st, err := Prepare[[]any](ctx, sess, stmt, NewValuesProvider(members...))
	if err != nil {
		c.log.Err(err).Msg("\t ... (Exec) prepare error")
		return Result{Error: err}
	}
	defer func() {
		_ = st.Close()
	}()

	rowsAffected, err := st.Execute(ctx, values)
	if err != nil {
		c.log.Err(err).Msgf("\t ... (Exec) Error Executing Query: [%v]", stmt)
		return Result{Error: err}
	}
	return Result{
		RecordsAffected: rowsAffected,
		HasData:         rowsAffected > 0,
	}
}

// Close closes the current connection
func (c *Connection) Close() {
	err := c.conn.Close()
	if err != nil {
		c.log.Err(err).Msg("Error closing connection")
	}
}

// Ping make a test to a current connection
func (c *Connection) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.conn.PingContext(ctx)
	if err != nil {
		return CantPingConnection(err.Error())
	}
	return nil
}

// ReConnect execute a ping against database if error happens,
// a new connection is created
func (c *Connection) ReConnect() error {
	if err := c.Ping(); err != nil {
		conn, err := createConnection(c.ConStr, c.Configuration, c.log)
		if err != nil {
			return err
		}
		old := c.conn
		c.conn = conn
		_ = old.Close()
	}

	return nil
}

// -----------------------------------------------------
// Private
// -----------------------------------------------------

// context derives the deadline every convenience call runs under
func (c *Connection) context() (context.Context, context.CancelFunc) {
	timeout := 120 * time.Second
	if c.Configuration != nil && c.Configuration.ConfigurationSet && c.Configuration.ContextTimeout > 0 {
		timeout = time.Duration(c.Configuration.ContextTimeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return c.log.WithContext(ctx), cancel
}

func (c *Connection) batch() int {
	if c.Configuration != nil && c.Configuration.FetchBatch > 0 {
		return c.Configuration.FetchBatch
	}
	return 50
}

// createConnection takes all the parameters a construct a new connection object to reuse as pool
// Parameters:
// @constr ConnectionString
// @configuration All The configurations that affect how the pool behaves
// @log Log object provided to write into unified log
func createConnection(constr string, configuration *ConnectionConfiguration, log *zerolog.Logger) (*sql.DB, error) {
	// Open connection via sql.Open interface
	conn, err := sql.Open("oracle", constr)
	if err != nil {
		return nil, CantCreateConnErr(err.Error())
	}

	// context timeout
	timeout := time.Duration(30) * time.Second

	if configuration != nil && configuration.ConfigurationSet {
		log.Info().Msg(" ----------------------------------------  ")
		log.Info().Msgf(" ... MaxOpenConnections : %v", configuration.MaxOpenConnections)
		log.Info().Msgf(" ... MaxIdleConnections : %v", configuration.MaxIdleConnections)
		log.Info().Msgf(" ... MaxConnectionLifeTime : %v", configuration.MaxConnectionLifeTime)
		log.Info().Msgf(" ... MaxIdleConnectionTime : %v", configuration.MaxIdleConnectionTime)
		log.Info().Msgf(" ... FetchBatch : %v", configuration.FetchBatch)
		log.Info().Msg(" ----------------------------------------  ")

		conn.SetMaxOpenConns(configuration.MaxOpenConnections)
		conn.SetMaxIdleConns(configuration.MaxIdleConnections)
		conn.SetConnMaxLifetime(configuration.MaxConnectionLifeTime)
		conn.SetConnMaxIdleTime(configuration.MaxIdleConnectionTime)
		if configuration.ContextTimeout > 0 {
			timeout = time.Duration(configuration.ContextTimeout) * time.Second
		}
	}

	// test connection
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err = conn.PingContext(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, CantPingConnection(fmt.Sprintf("PingContext %v", err.Error()))
	}

	return conn, nil
}
