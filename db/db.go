package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/timeline"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

const (
	//Origins
	sqlCreateOriginsTable = `CREATE TABLE IF NOT EXISTS origins(
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        kind varchar(20) NOT NULL,
                        name varchar(100) UNIQUE NOT NULL,
                        host varchar(255) NOT NULL
                        )`
	sqlInsertOrigin       = `INSERT INTO origins(kind, name, host) VALUES (?, ?, ?)`
	sqlSelectOriginById   = `SELECT id, kind, name, host FROM origins WHERE id = ?`
	sqlSelectOriginByName = `SELECT id, kind, name, host FROM origins WHERE name = ?`
	sqlSelectAllOrigins   = `SELECT id, kind, name, host FROM origins ORDER BY id`

	//Actors
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors(
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        origin_id INTEGER NOT NULL,
                        oid varchar(500) NOT NULL,
                        username varchar(255),
                        webfinger_id varchar(255),
                        webfinger_valid int default 0,
                        real_name varchar(255),
                        profile_url varchar(500),
                        homepage varchar(500),
                        avatar_url varchar(500),
                        notes_count INTEGER default 0,
                        favorites_count INTEGER default 0,
                        following_count INTEGER default 0,
                        followers_count INTEGER default 0,
                        created_date INTEGER default 0,
                        updated_date INTEGER default 0,
                        avatar_downloaded_at INTEGER default 0,
                        latest_note_id INTEGER default 0,
                        UNIQUE(origin_id, oid)
                        )`
	sqlInsertActor = `INSERT INTO actors(origin_id, oid, username, webfinger_id, webfinger_valid, real_name,
                        profile_url, homepage, avatar_url, notes_count, favorites_count, following_count,
                        followers_count, created_date, updated_date, avatar_downloaded_at, latest_note_id)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateActor = `UPDATE actors SET oid = ?, username = ?, webfinger_id = ?, webfinger_valid = ?,
                        real_name = ?, profile_url = ?, homepage = ?, avatar_url = ?, notes_count = ?,
                        favorites_count = ?, following_count = ?, followers_count = ?, created_date = ?,
                        updated_date = ?, avatar_downloaded_at = ?, latest_note_id = ? WHERE id = ?`
	sqlSelectActor = `SELECT actors.id, actors.oid, actors.username, actors.webfinger_id, actors.webfinger_valid,
                        actors.real_name, actors.profile_url, actors.homepage, actors.avatar_url,
                        actors.notes_count, actors.favorites_count, actors.following_count, actors.followers_count,
                        actors.created_date, actors.updated_date, actors.avatar_downloaded_at, actors.latest_note_id,
                        origins.id, origins.kind, origins.name, origins.host
                        FROM actors INNER JOIN origins ON origins.id = actors.origin_id`
	sqlSelectActorById          = sqlSelectActor + ` WHERE actors.id = ?`
	sqlSelectActorIdByOid       = `SELECT id FROM actors WHERE origin_id = ? AND oid = ?`
	sqlSelectActorIdByWebFinger = `SELECT id FROM actors WHERE origin_id = ? AND webfinger_id = ? AND webfinger_valid = 1`
	sqlSelectActorIdByUsername  = `SELECT id FROM actors WHERE origin_id = ? AND username = ?`

	//Accounts
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        name varchar(255) UNIQUE NOT NULL,
                        origin_id INTEGER NOT NULL,
                        actor_id INTEGER default 0,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertAccount     = `INSERT INTO accounts(id, name, origin_id, actor_id, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectAllAccounts = `SELECT id, name, origin_id, actor_id, created_at FROM accounts ORDER BY name`

	//Notes (one row per note per downloading account)
	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes(
                        id uuid NOT NULL PRIMARY KEY,
                        note_id INTEGER NOT NULL,
                        origin_id INTEGER NOT NULL,
                        oid varchar(500),
                        author_id INTEGER NOT NULL,
                        in_reply_to_note_id INTEGER default 0,
                        in_reply_to_actor_id INTEGER default 0,
                        content text,
                        content_to_search text,
                        favorited int default 0,
                        reblogged int default 0,
                        status int default 0,
                        updated_date INTEGER default 0,
                        activity_date INTEGER default 0,
                        linked_account varchar(255) NOT NULL,
                        UNIQUE(note_id, linked_account)
                        )`
	sqlInsertNote = `INSERT INTO notes(id, note_id, origin_id, oid, author_id, in_reply_to_note_id,
                        in_reply_to_actor_id, content, content_to_search, favorited, reblogged, status,
                        updated_date, activity_date, linked_account)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectTimeline = `SELECT notes.note_id, notes.in_reply_to_note_id, notes.in_reply_to_actor_id,
                        notes.content, notes.content_to_search, notes.favorited, notes.reblogged, notes.status,
                        notes.updated_date, notes.activity_date, notes.linked_account, notes.author_id
                        FROM notes ORDER BY notes.updated_date DESC LIMIT ?`

	//Rebloggers
	sqlCreateRebloggersTable = `CREATE TABLE IF NOT EXISTS note_rebloggers(
                        id uuid NOT NULL PRIMARY KEY,
                        note_id INTEGER NOT NULL,
                        linked_account varchar(255) NOT NULL,
                        actor_id INTEGER NOT NULL,
                        actor_name varchar(255),
                        UNIQUE(note_id, linked_account, actor_id)
                        )`
	sqlInsertReblogger     = `INSERT INTO note_rebloggers(id, note_id, linked_account, actor_id, actor_name) VALUES (?, ?, ?, ?, ?)`
	sqlSelectAllRebloggers = `SELECT note_id, linked_account, actor_id, actor_name FROM note_rebloggers`

	//Fetch log
	sqlCreateFetchLogTable = `CREATE TABLE IF NOT EXISTS fetch_log(
                        id uuid NOT NULL PRIMARY KEY,
                        actor_id INTEGER NOT NULL,
                        username varchar(255),
                        status varchar(20) NOT NULL,
                        requested_at timestamp default current_timestamp
                        )`
	sqlInsertFetchLog = `INSERT INTO fetch_log(id, actor_id, username, status, requested_at) VALUES (?, ?, ?, ?, ?)`
	sqlUpdateFetchLog = `UPDATE fetch_log SET status = ? WHERE id = ?`
)

// NewDB opens the database at dbFile and runs the initial schema setup.
// The caller owns the handle; there is no process-wide instance.
func NewDB(dbFile string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	var journalMode string
	err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
	if err != nil {
		log.Printf("Warning: Failed to enable WAL mode: %v", err)
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA cache_size = -64000")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")

	database := &DB{db: sqlDB}
	if err := database.CreateDB(); err != nil {
		return nil, err
	}
	return database, nil
}

// CreateDB creates the database schema.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			sqlCreateOriginsTable,
			sqlCreateActorsTable,
			sqlCreateAccountsTable,
			sqlCreateNotesTable,
			sqlCreateRebloggersTable,
			sqlCreateFetchLogTable,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) Close() error {
	return db.db.Close()
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// Origins

func (db *DB) CreateOrigin(origin *domain.Origin) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertOrigin, origin.Kind.String(), origin.Name, origin.Host)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		origin.Id = id
		return nil
	})
}

func (db *DB) ReadOriginById(id int64) (error, *domain.Origin) {
	return scanOrigin(db.db.QueryRow(sqlSelectOriginById, id))
}

func (db *DB) ReadOriginByName(name string) (error, *domain.Origin) {
	return scanOrigin(db.db.QueryRow(sqlSelectOriginByName, name))
}

func scanOrigin(row *sql.Row) (error, *domain.Origin) {
	var origin domain.Origin
	var kind string
	err := row.Scan(&origin.Id, &kind, &origin.Name, &origin.Host)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	origin.Kind = domain.OriginKindFromString(kind)
	return nil, &origin
}

func (db *DB) ReadAllOrigins() (error, *[]domain.Origin) {
	rows, err := db.db.Query(sqlSelectAllOrigins)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var origins []domain.Origin
	for rows.Next() {
		var origin domain.Origin
		var kind string
		if err := rows.Scan(&origin.Id, &kind, &origin.Name, &origin.Host); err != nil {
			return err, &origins
		}
		origin.Kind = domain.OriginKindFromString(kind)
		origins = append(origins, origin)
	}
	if err = rows.Err(); err != nil {
		return err, &origins
	}
	return nil, &origins
}

// Actors

// SaveActor inserts the actor or updates the existing row, and sets the
// numeric local id on insert.
func (db *DB) SaveActor(actor *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if actor.ActorId == 0 {
			res, err := tx.Exec(sqlInsertActor,
				actor.Origin.Id,
				actor.Oid,
				actor.Username,
				actor.WebFingerId,
				boolToInt(actor.WebFingerValid),
				actor.RealName,
				actor.ProfileUrl,
				actor.Homepage,
				actor.AvatarUrl,
				actor.NotesCount,
				actor.FavoritesCount,
				actor.FollowingCount,
				actor.FollowersCount,
				timeToMillis(actor.CreatedDate),
				timeToMillis(actor.UpdatedDate),
				timeToMillis(actor.AvatarDownloadedAt),
				actor.LatestNoteId,
			)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			actor.ActorId = id
			return nil
		}
		_, err := tx.Exec(sqlUpdateActor,
			actor.Oid,
			actor.Username,
			actor.WebFingerId,
			boolToInt(actor.WebFingerValid),
			actor.RealName,
			actor.ProfileUrl,
			actor.Homepage,
			actor.AvatarUrl,
			actor.NotesCount,
			actor.FavoritesCount,
			actor.FollowingCount,
			actor.FollowersCount,
			timeToMillis(actor.CreatedDate),
			timeToMillis(actor.UpdatedDate),
			timeToMillis(actor.AvatarDownloadedAt),
			actor.LatestNoteId,
			actor.ActorId,
		)
		return err
	})
}

// ReadActorById hydrates the full actor row including its origin.
func (db *DB) ReadActorById(actorId int64) (error, *domain.Actor) {
	row := db.db.QueryRow(sqlSelectActorById, actorId)

	var actor domain.Actor
	var webFingerId string
	var webFingerValid int
	var created, updated, avatarDownloaded int64
	var kind string
	err := row.Scan(
		&actor.ActorId,
		&actor.Oid,
		&actor.Username,
		&webFingerId,
		&webFingerValid,
		&actor.RealName,
		&actor.ProfileUrl,
		&actor.Homepage,
		&actor.AvatarUrl,
		&actor.NotesCount,
		&actor.FavoritesCount,
		&actor.FollowingCount,
		&actor.FollowersCount,
		&created,
		&updated,
		&avatarDownloaded,
		&actor.LatestNoteId,
		&actor.Origin.Id,
		&kind,
		&actor.Origin.Name,
		&actor.Origin.Host,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	actor.Origin.Kind = domain.OriginKindFromString(kind)
	actor = actor.WithWebFingerId(webFingerId)
	actor = actor.WithCreatedDate(time.UnixMilli(created).UTC())
	actor = actor.WithUpdatedDate(time.UnixMilli(updated).UTC())
	if avatarDownloaded > 0 {
		actor.AvatarDownloadedAt = time.UnixMilli(avatarDownloaded).UTC()
	}
	return nil, &actor
}

// ActorIdByOid looks up the numeric id by opaque id within an origin.
// A miss or a storage failure is 0, never an error.
func (db *DB) ActorIdByOid(originId int64, oid string) int64 {
	return db.scanActorId(sqlSelectActorIdByOid, originId, oid)
}

// ActorIdByWebFinger only matches validated addresses.
func (db *DB) ActorIdByWebFinger(originId int64, webFingerId string) int64 {
	return db.scanActorId(sqlSelectActorIdByWebFinger, originId, webFingerId)
}

func (db *DB) ActorIdByUsername(originId int64, username string) int64 {
	return db.scanActorId(sqlSelectActorIdByUsername, originId, username)
}

func (db *DB) scanActorId(query string, originId int64, key string) int64 {
	if originId == 0 || key == "" {
		return 0
	}
	var actorId int64
	err := db.db.QueryRow(query, originId, key).Scan(&actorId)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		log.Printf("actor id lookup failed: %v", err)
		return 0
	}
	return actorId
}

// Accounts

func (db *DB) CreateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount, acc.Id.String(), acc.Name, acc.OriginId, acc.ActorId, acc.CreatedAt)
		return err
	})
}

func (db *DB) ReadAllAccounts() (error, *[]domain.Account) {
	rows, err := db.db.Query(sqlSelectAllAccounts)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		var idStr string
		if err := rows.Scan(&idStr, &acc.Name, &acc.OriginId, &acc.ActorId, &acc.CreatedAt); err != nil {
			return err, &accounts
		}
		acc.Id, _ = uuid.Parse(idStr)
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return err, &accounts
	}
	return nil, &accounts
}

// Notes

// CreateNote stores one timeline entry row for the account that downloaded it.
func (db *DB) CreateNote(entry *timeline.Entry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNote,
			uuid.New().String(),
			entry.NoteId,
			entry.Origin.Id,
			"",
			entry.Author.ActorId,
			entry.InReplyToNoteId,
			entry.InReplyToActor.ActorId,
			entry.Content,
			entry.ContentToSearch,
			boolToInt(entry.Favorited),
			boolToInt(entry.Reblogged),
			int(entry.NoteStatus),
			timeToMillis(entry.UpdatedDate),
			timeToMillis(entry.ActivityDate),
			entry.LinkedAccount,
		)
		if err != nil {
			return err
		}
		for actorId, name := range entry.Rebloggers {
			if _, err := tx.Exec(sqlInsertReblogger, uuid.New().String(), entry.NoteId, entry.LinkedAccount, actorId, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadTimeline loads the newest entries with authors hydrated and
// rebloggers attached.
func (db *DB) ReadTimeline(limit int) (error, []*timeline.Entry) {
	rows, err := db.db.Query(sqlSelectTimeline, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var entries []*timeline.Entry
	authorIds := make(map[int64]bool)
	for rows.Next() {
		var entry timeline.Entry
		var favorited, reblogged, status int
		var updated, activity int64
		var authorId, inReplyToActorId int64
		if err := rows.Scan(
			&entry.NoteId,
			&entry.InReplyToNoteId,
			&inReplyToActorId,
			&entry.Content,
			&entry.ContentToSearch,
			&favorited,
			&reblogged,
			&status,
			&updated,
			&activity,
			&entry.LinkedAccount,
			&authorId,
		); err != nil {
			return err, entries
		}
		entry.Favorited = favorited != 0
		entry.Reblogged = reblogged != 0
		entry.NoteStatus = timeline.DownloadStatus(status)
		entry.UpdatedDate = time.UnixMilli(updated).UTC()
		entry.ActivityDate = time.UnixMilli(activity).UTC()
		entry.Author = domain.ActorFromId(domain.OriginEmpty, authorId, "")
		entry.InReplyToActor = domain.ActorFromId(domain.OriginEmpty, inReplyToActorId, "")
		authorIds[authorId] = true
		entries = append(entries, &entry)
	}
	if err = rows.Err(); err != nil {
		return err, entries
	}

	// Hydrate authors, one query per distinct actor
	actors := make(map[int64]domain.Actor)
	for actorId := range authorIds {
		if err, actor := db.ReadActorById(actorId); err == nil && actor != nil {
			actors[actorId] = *actor
		}
	}
	for _, entry := range entries {
		if actor, ok := actors[entry.Author.ActorId]; ok {
			entry.Author = actor
			entry.Origin = actor.Origin
		}
	}

	if err := db.attachRebloggers(entries); err != nil {
		return err, entries
	}
	return nil, entries
}

func (db *DB) attachRebloggers(entries []*timeline.Entry) error {
	rows, err := db.db.Query(sqlSelectAllRebloggers)
	if err != nil {
		return err
	}
	defer rows.Close()

	type entryKey struct {
		noteId  int64
		account string
	}
	byKey := make(map[entryKey]*timeline.Entry, len(entries))
	for _, entry := range entries {
		byKey[entryKey{entry.NoteId, entry.LinkedAccount}] = entry
	}
	for rows.Next() {
		var noteId, actorId int64
		var account, name string
		if err := rows.Scan(&noteId, &account, &actorId, &name); err != nil {
			return err
		}
		if entry, ok := byKey[entryKey{noteId, account}]; ok {
			entry.AddReblogger(actorId, name)
		}
	}
	return rows.Err()
}

// Fetch log

func (db *DB) LogFetchRequest(id uuid.UUID, actorId int64, username string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFetchLog, id.String(), actorId, username, "pending", time.Now())
		return err
	})
}

func (db *DB) UpdateFetchStatus(id uuid.UUID, status string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateFetchLog, status, id.String())
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
