package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// FirestoreStore implements Store over the Firestore SDK.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestore connects to the given project. If credentialsFile is empty,
// application default credentials are used.
func NewFirestore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, eris.New("docstore: no firestore project_id configured")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: connect to project %s", projectID)
	}

	return &FirestoreStore{client: client}, nil
}

// Watch opens a snapshot listener on the collection and streams its document
// changes. The returned channel is closed when ctx is canceled or the listener
// fails; a transport failure is delivered as a final Change with Err set.
func (s *FirestoreStore) Watch(ctx context.Context, collection string) (<-chan Change, error) {
	iter := s.client.Collection(collection).Snapshots(ctx)
	out := make(chan Change)

	go func() {
		defer close(out)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- Change{Err: eris.Wrapf(err, "docstore: watch %s", collection)}:
				case <-ctx.Done():
				}
				return
			}

			for _, ch := range snap.Changes {
				ev := Change{
					Kind: fromFirestoreKind(ch.Kind),
					Doc: Document{
						ID:     ch.Doc.Ref.ID,
						Fields: fromNativeMap(ch.Doc.Data()),
					},
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// GetAll reads every document in the collection.
func (s *FirestoreStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	snaps, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: read collection %s", collection)
	}

	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{
			ID:     snap.Ref.ID,
			Fields: fromNativeMap(snap.Data()),
		})
	}
	return docs, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func fromFirestoreKind(k firestore.DocumentChangeKind) ChangeKind {
	switch k {
	case firestore.DocumentAdded:
		return Added
	case firestore.DocumentModified:
		return Modified
	case firestore.DocumentRemoved:
		return Removed
	default:
		return Modified
	}
}

// fromNative tags a raw SDK value. This is the only place that inspects value
// shapes; everything downstream works on the typed union.
func fromNative(v any) Value {
	switch t := v.(type) {
	case time.Time:
		return Timestamp{T: t}
	case map[string]any:
		return Nested(fromNativeMap(t))
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			arr[i] = fromNative(e)
		}
		return arr
	default:
		return Scalar{V: v}
	}
}

func fromNativeMap(m map[string]any) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = fromNative(v)
	}
	return out
}
