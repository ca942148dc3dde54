package tracing

import (
	"github.com/GriffinCanCode/apmtrace/internal/shared/utils"
)

const (
	unknownProduct   = "Unknown"
	unknownOperation = "other"
)

// DatastoreParams describes a datastore call.
type DatastoreParams struct {
	Product      string // e.g. "Postgres", "Redis"
	Operation    string // e.g. "select", "get"
	Collection   string // table or key space, optional
	Host         string
	PortPathOrID string
	DatabaseName string
}

// DatastoreSegment times a datastore call.
type DatastoreSegment struct {
	*Segment

	product      string
	operation    string
	collection   string
	host         string
	portPathOrID string
	databaseName string

	sql *SQLStatement
}

// NewDatastoreSegment creates an unstarted datastore segment.
func (txn *Transaction) NewDatastoreSegment(p DatastoreParams) *DatastoreSegment {
	if txn == nil {
		return nil
	}
	cfg := txn.tracer.cfg.Datastore

	d := &DatastoreSegment{
		product:    utils.SanitizeSegment(p.Product, unknownProduct),
		operation:  utils.SanitizeSegment(p.Operation, unknownOperation),
		collection: utils.SanitizeSegment(p.Collection, ""),
	}
	if cfg.InstanceReporting {
		d.host = utils.SanitizeSegment(p.Host, "")
		d.portPathOrID = utils.SanitizeSegment(p.PortPathOrID, "")
	}
	if cfg.DatabaseNameReporting {
		d.databaseName = p.DatabaseName
	}

	d.Segment = newSegment(txn, KindDatastore, "")
	d.Segment.datastore = d
	d.Segment.name = d.metricName()
	return d
}

// Start starts the segment.
func (d *DatastoreSegment) Start() {
	if d == nil {
		return
	}
	d.Segment.Start()
}

// Finish finishes the segment and reports its metrics.
func (d *DatastoreSegment) Finish() {
	if d == nil {
		return
	}
	d.Segment.Finish()
}

// Product returns the normalized product.
func (d *DatastoreSegment) Product() string {
	if d == nil {
		return ""
	}
	return d.product
}

// Operation returns the normalized operation.
func (d *DatastoreSegment) Operation() string {
	if d == nil {
		return ""
	}
	return d.operation
}

// Collection returns the collection, empty when unknown.
func (d *DatastoreSegment) Collection() string {
	if d == nil {
		return ""
	}
	return d.collection
}

// DatabaseName returns the database name when reporting is enabled.
func (d *DatastoreSegment) DatabaseName() string {
	if d == nil {
		return ""
	}
	return d.databaseName
}

// SQL returns the statement recorded by NoticeSQL.
func (d *DatastoreSegment) SQL() *SQLStatement {
	if d == nil {
		return nil
	}
	return d.sql
}

// InstanceID returns "host:port", or whichever side is known.
func (d *DatastoreSegment) InstanceID() string {
	if d == nil {
		return ""
	}
	switch {
	case d.host != "" && d.portPathOrID != "":
		return d.host + ":" + d.portPathOrID
	case d.host != "":
		return d.host
	default:
		return d.portPathOrID
	}
}

func (d *DatastoreSegment) metricName() string {
	if d.collection != "" {
		return "Datastore/statement/" + d.product + "/" + d.collection + "/" + d.operation
	}
	return d.operationMetric()
}

func (d *DatastoreSegment) operationMetric() string {
	return "Datastore/operation/" + d.product + "/" + d.operation
}

func (d *DatastoreSegment) rollups(web bool) []string {
	names := make([]string, 0, 6)
	if d.collection != "" {
		names = append(names, d.operationMetric())
	}
	if instance := d.InstanceID(); instance != "" {
		names = append(names, "Datastore/instance/"+d.product+"/"+instance)
	}
	if web {
		names = append(names, "Datastore/"+d.product+"/allWeb")
	} else {
		names = append(names, "Datastore/"+d.product+"/allOther")
	}
	names = append(names, "Datastore/"+d.product+"/all")
	if web {
		names = append(names, "Datastore/allWeb")
	} else {
		names = append(names, "Datastore/allOther")
	}
	return append(names, "Datastore/all")
}

func (d *DatastoreSegment) onComplete() {
	if d.host != "" {
		d.AddParam("host", d.host)
	}
	if d.portPathOrID != "" {
		d.AddParam("port_path_or_id", d.portPathOrID)
	}
	if d.databaseName != "" {
		d.AddParam("database_name", d.databaseName)
	}
	if d.sql != nil {
		d.AddParam("sql", d.sql.SQL)
	}
}

// submitSQL hands the statement to the SQL sampler with the final duration.
func (d *DatastoreSegment) submitSQL() {
	txn := d.txn
	sampler := txn.tracer.sqlSampler
	if d.sql == nil || sampler == nil || txn.ignored || txn.finished {
		return
	}
	sampler.NoticeSQL(SQLSample{
		Statement:       d.sql,
		MetricName:      d.name,
		TransactionName: txn.MetricName(),
		TransactionGUID: txn.guid.String(),
		Duration:        d.duration,
	})
}
