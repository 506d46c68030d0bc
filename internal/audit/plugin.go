package audit

import (
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
)

// RowFactory builds a bind-specific change-log row. The audit plugin itself
// does not know the row type: the primary bind stores actor display names, the
// examination bind stores bare user ids.
type RowFactory func(parentID uint, field, oldValue, newValue string, act actor.Actor, ts time.Time) interface{}

// Plugin hooks gorm's create and update flows on one bind. Inserts snapshot
// every populated column against the ∅ sentinel; updates log only columns
// whose stringified value changed, comparing against the row currently in the
// database. Rows are written in the same transaction as the mutation.
type Plugin struct {
	bind string
	rows RowFactory
}

func NewPlugin(bind string, rows RowFactory) *Plugin {
	return &Plugin{bind: bind, rows: rows}
}

func (p *Plugin) Name() string {
	return "audit:" + p.bind
}

func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register(p.Name()+":create", p.afterCreate); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").Register(p.Name()+":update", p.beforeUpdate)
}

// Lifecycle columns change on every write and are not part of the audit
// surface.
func skippedColumn(f *schema.Field) bool {
	if f.PrimaryKey || f.DBName == "" {
		return true
	}
	return f.DBName == "created_at" || f.DBName == "updated_at"
}

func (p *Plugin) afterCreate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	p.eachAudited(db, func(rv reflect.Value, tracked Audited) {
		act, _ := actor.FromContext(db.Statement.Context)
		ts := timeutil.NowUTC()
		var logRows []interface{}
		for _, f := range db.Statement.Schema.Fields {
			if skippedColumn(f) {
				continue
			}
			value, isZero := f.ValueOf(db.Statement.Context, rv)
			if isZero {
				continue
			}
			logRows = append(logRows, p.rows(tracked.AuditParentID(), f.DBName, InsertSentinel, Stringify(value), act, ts))
		}
		p.insert(db, logRows)
	})
}

func (p *Plugin) beforeUpdate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	p.eachAudited(db, func(rv reflect.Value, tracked Audited) {
		parentID := tracked.AuditParentID()
		if parentID == 0 {
			return
		}
		prev := reflect.New(rv.Type())
		sess := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
		if err := sess.First(prev.Interface(), parentID).Error; err != nil {
			return
		}
		act, _ := actor.FromContext(db.Statement.Context)
		ts := timeutil.NowUTC()
		var logRows []interface{}
		for _, f := range db.Statement.Schema.Fields {
			if skippedColumn(f) {
				continue
			}
			oldVal, oldZero := f.ValueOf(db.Statement.Context, prev.Elem())
			newVal, newZero := f.ValueOf(db.Statement.Context, rv)
			oldStr := InsertSentinel
			if !oldZero {
				oldStr = Stringify(oldVal)
			}
			newStr := InsertSentinel
			if !newZero {
				newStr = Stringify(newVal)
			}
			// Change is defined on the stringified values, matching the
			// reader-facing representation.
			if oldStr == newStr {
				continue
			}
			logRows = append(logRows, p.rows(parentID, f.DBName, oldStr, newStr, act, ts))
		}
		p.insert(db, logRows)
	})
}

// eachAudited invokes fn for the statement's model when it is a tracked
// entity, unwrapping slices from batch creates.
func (p *Plugin) eachAudited(db *gorm.DB, fn func(rv reflect.Value, tracked Audited)) {
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Struct:
		if tracked, ok := addrOf(rv).(Audited); ok {
			fn(rv, tracked)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct {
				continue
			}
			if tracked, ok := addrOf(elem).(Audited); ok {
				fn(elem, tracked)
			}
		}
	}
}

func addrOf(rv reflect.Value) interface{} {
	if rv.CanAddr() {
		return rv.Addr().Interface()
	}
	clone := reflect.New(rv.Type())
	clone.Elem().Set(rv)
	return clone.Interface()
}

func (p *Plugin) insert(db *gorm.DB, logRows []interface{}) {
	if len(logRows) == 0 {
		return
	}
	sess := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	for _, row := range logRows {
		if err := sess.Create(row).Error; err != nil {
			_ = db.AddError(err)
			return
		}
	}
}
