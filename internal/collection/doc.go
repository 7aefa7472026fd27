// Package collection provides memory-bounded bulk iteration and bulk
// removal over any store.Store.
//
// Both iterators are lazy, finite and not restartable. Pages are fetched
// strictly one at a time; nothing is prefetched.
//
//	pages := collection.ListAll[device.Device](lister, where, 100)
//	for pages.Next(ctx) {
//	    for _, d := range pages.Page().Records {
//	        ...
//	    }
//	}
//	if err := pages.Err(); err != nil {
//	    return err
//	}
package collection
